package redis

import "time"

const DEFAULT_NAMESPACE string = "intake"
const DEFAULT_ADDR string = "localhost:6379"

// Config selects a single node or, with several Addrs, a cluster client.
type Config struct {
	Addrs       []string
	Namespace   string
	Password    string
	PoolSize    int
	DialTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if len(c.Addrs) == 0 || (len(c.Addrs) == 1 && c.Addrs[0] == "") {
		c.Addrs = []string{DEFAULT_ADDR}
	}
	if c.Namespace == "" {
		c.Namespace = DEFAULT_NAMESPACE
	}
	return c
}
