package classifier

import (
	"govariant/adapters/classifier/forest"
	"govariant/adapters/classifier/logistic"
	"govariant/internal"
	"govariant/ports"
)

// TrainerOptions configures every supported classifier kind.
type TrainerOptions struct {
	Logistic logistic.Options
	Forest   forest.Options
}

// DefaultTrainerOptions returns the production defaults.
func DefaultTrainerOptions() TrainerOptions {
	return TrainerOptions{Logistic: logistic.DefaultOptions(), Forest: forest.DefaultOptions()}
}

// Trainers returns one trainer per kind in model.PriorityOrder.
func Trainers(opts TrainerOptions, rng ports.RNGPort, logger *internal.Logger) []ports.Trainer {
	return []ports.Trainer{
		logistic.NewTrainer(opts.Logistic, logger),
		forest.NewTrainer(opts.Forest, rng, logger),
	}
}
