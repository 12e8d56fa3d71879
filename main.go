package main

import (
	"fmt"
	"log"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"

	"github.com/rushbgti/trackmania-rl/agent/nonlinear/continuous/sac"
	"github.com/rushbgti/trackmania-rl/spec"
	"github.com/rushbgti/trackmania-rl/timestep"
	"github.com/rushbgti/trackmania-rl/utils/progressbar"
)

const (
	maxEpisodeSteps = 200
	numEpisodes     = 10
	dt              = 0.05
	goalRadius      = 0.05
)

// pointMass is a minimal continuous-control task used to exercise the
// rollout loop: a unit mass on a plane accelerates under a bounded
// 2D force and is rewarded for approaching the origin.
type pointMass struct {
	pos [2]float64
	vel [2]float64
	rng *rand.Rand
	n   int
}

func newPointMass(seed uint64) *pointMass {
	return &pointMass{rng: rand.New(rand.NewSource(seed))}
}

func (p *pointMass) observation() mat.Vector {
	return mat.NewVecDense(4, []float64{p.pos[0], p.pos[1], p.vel[0],
		p.vel[1]})
}

// Reset places the mass uniformly at random in the unit box with zero
// velocity and returns the first step of a new episode.
func (p *pointMass) Reset() timestep.TimeStep {
	p.pos[0] = p.rng.Float64()*2 - 1
	p.pos[1] = p.rng.Float64()*2 - 1
	p.vel[0], p.vel[1] = 0, 0
	p.n = 0

	return timestep.New(timestep.First, 0, 1, p.observation(), p.n)
}

// Step applies the argument force for one time interval using Euler
// integration.
func (p *pointMass) Step(action []float64) timestep.TimeStep {
	for i := 0; i < 2; i++ {
		p.vel[i] += action[i] * dt
		p.pos[i] += p.vel[i] * dt
	}
	p.n++

	dist := math.Hypot(p.pos[0], p.pos[1])
	stepType := timestep.Mid
	if dist < goalRadius || p.n >= maxEpisodeSteps {
		stepType = timestep.Last
	}

	step := timestep.New(stepType, -dist, 1, p.observation(), p.n)
	step.Info = map[string]float64{"distance": dist}
	return step
}

func main() {
	var seed uint64 = 192382

	// Observation space: a single flat sub-space holding the position
	// and velocity of the mass. Action space: a 2D force in [-1, 1].
	obsSpace, err := spec.NewComposite(mat.NewVecDense(1, []float64{4}))
	if err != nil {
		log.Fatalf("could not create observation space: %v", err)
	}
	actSpace, err := spec.NewBounded(
		mat.NewVecDense(2, []float64{-1, -1}),
		mat.NewVecDense(2, []float64{1, 1}),
	)
	if err != nil {
		log.Fatalf("could not create action space: %v", err)
	}

	config := sac.MLPConfig{
		HiddenSizes: []int{64, 64},
		Seed:        seed,
	}
	bundle, err := sac.New(config, obsSpace, actSpace)
	if err != nil {
		log.Fatalf("could not create actor-critic: %v", err)
	}
	defer bundle.Close()

	actor, err := sac.NewActor(bundle.Policy(), G.CPU)
	if err != nil {
		log.Fatalf("could not create actor: %v", err)
	}

	env := newPointMass(seed)
	bar := progressbar.NewManualProgressBar(50, numEpisodes)

	returns := make([]float64, numEpisodes)
	for ep := 0; ep < numEpisodes; ep++ {
		step := env.Reset()
		state := actor.Reset()

		for !step.Last() {
			obs := [][]float64{mat.VecDenseCopyOf(step.Observation).RawVector().Data}

			var action []float64
			action, state, _, err = actor.Act(state, obs, step.Reward,
				step.Last(), step.Info, true)
			if err != nil {
				log.Fatalf("episode %v: %v", ep, err)
			}

			step = env.Step(action)
			returns[ep] += step.Reward
		}

		bar.Increment()
		bar.Display()
	}

	total := 0.0
	for _, ret := range returns {
		total += ret
	}
	fmt.Printf("\naverage return over %v episodes: %.3f\n", numEpisodes,
		total/numEpisodes)
}
