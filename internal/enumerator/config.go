package enumerator

import "time"

// Config bounds a same-site link walk.
type Config struct {
	// MaxDepth is how many links away from the root a page may be. 0 keeps
	// only the root.
	MaxDepth int `yaml:"max_depth"`

	// MaxPages caps the number of pages returned, root included.
	MaxPages int `yaml:"max_pages"`

	// Timeout applies to each page fetch.
	Timeout time.Duration `yaml:"timeout"`

	RetryMax  int    `yaml:"retry_max"`
	UserAgent string `yaml:"user_agent"`
}

func DefaultConfig() Config {
	return Config{
		MaxDepth:  1,
		MaxPages:  20,
		Timeout:   15 * time.Second,
		RetryMax:  2,
		UserAgent: "darklens/0.1 (+https://github.com/raysh454/darklens)",
	}
}
