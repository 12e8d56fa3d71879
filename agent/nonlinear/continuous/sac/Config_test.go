package sac_test

import (
	"testing"

	"github.com/rushbgti/trackmania-rl/agent/nonlinear/continuous/sac"
)

func TestMLPConfigDefaults(t *testing.T) {
	obsSpace, actSpace := testSpaces(t)

	bundle, err := sac.New(sac.MLPConfig{}, obsSpace, actSpace)
	if err != nil {
		t.Fatalf("could not create actor-critic: %v", err)
	}
	defer bundle.Close()

	if bundle.NumCritics() != 2 {
		t.Errorf("wrong default ensemble size: want(2) have(%v)",
			bundle.NumCritics())
	}
	if bundle.Policy().BatchSize() != 1 {
		t.Errorf("wrong default batch size: want(1) have(%v)",
			bundle.Policy().BatchSize())
	}
	if bundle.Policy().SeqLen() != 1 {
		t.Errorf("wrong sequence length: want(1) have(%v)",
			bundle.Policy().SeqLen())
	}
}

func TestRNNConfigDefaults(t *testing.T) {
	obsSpace, actSpace := testSpaces(t)

	bundle, err := sac.New(sac.RNNConfig{}, obsSpace, actSpace)
	if err != nil {
		t.Fatalf("could not create actor-critic: %v", err)
	}
	defer bundle.Close()

	if bundle.NumCritics() != 2 {
		t.Errorf("wrong default ensemble size: want(2) have(%v)",
			bundle.NumCritics())
	}
	policy := bundle.Policy()
	if policy.SeqLen() != 1 {
		t.Errorf("wrong default sequence length: want(1) have(%v)",
			policy.SeqLen())
	}
	if policy.Backbone().LatentSize() != 100 {
		t.Errorf("wrong default recurrent size: want(100) have(%v)",
			policy.Backbone().LatentSize())
	}
}

func TestConfigValidate(t *testing.T) {
	illegal := []struct {
		name   string
		config sac.Config
	}{
		{"negative hidden size", sac.MLPConfig{HiddenSizes: []int{64, -1}}},
		{"negative ensemble size", sac.MLPConfig{NumCritics: -1}},
		{"negative batch size", sac.MLPConfig{BatchSize: -1}},
		{"negative recurrent size", sac.RNNConfig{RnnSize: -4}},
		{"negative recurrent layers", sac.RNNConfig{RnnLen: -1}},
		{"negative sequence length", sac.RNNConfig{SeqLen: -2}},
		{"negative fully connected size",
			sac.RNNConfig{MLPSizes: []int{0}}},
	}

	for _, c := range illegal {
		if err := c.config.Validate(); err == nil {
			t.Errorf("expected a validation error for %v", c.name)
		}
	}
}

func TestConfigBuildRejectsIllegal(t *testing.T) {
	obsSpace, actSpace := testSpaces(t)

	_, err := sac.New(sac.MLPConfig{HiddenSizes: []int{-64}}, obsSpace,
		actSpace)
	if err == nil {
		t.Error("build should reject an illegal configuration")
	}
}
