package kmsclient

import "time"

type Option func(c *KMSClient)

func ConnAttempts(attempts int) Option {
	return func(c *KMSClient) {
		c.connAttempts = attempts
	}
}

func ConnTimeout(timeout time.Duration) Option {
	return func(c *KMSClient) {
		c.connTimeout = timeout
	}
}

func Region(region string) Option {
	return func(c *KMSClient) {
		c.region = region
	}
}
