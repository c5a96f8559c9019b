package twofa

import "time"

// Config carries the deployment-tunable parameters of the second-factor
// subsystem, loaded from the environment with caarlos0/env tags.
type Config struct {
	// Issuer is the label embedded in enrollment URIs and shown by
	// authenticator apps.
	Issuer string `env:"TWOFA_ISSUER" envDefault:"Inventory"`
	// MaxFailures is the consecutive-failure threshold that trips the lockout.
	MaxFailures int `env:"TWOFA_MAX_FAILURES" envDefault:"5"`
	// LockoutWindow is the sliding window measured from the last failure.
	LockoutWindow time.Duration `env:"TWOFA_LOCKOUT_WINDOW" envDefault:"15m"`
}
