package config

import (
	"time"

	"github.com/urfave/cli/v3"
)

// Server holds server configuration
type Server struct {
	Addr                string
	AllowedRepositories string
	DeliveryTTL         time.Duration
}

// Flags returns CLI flags for server configuration
func (c *Server) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Server address",
			Value:       "localhost:8080",
			Destination: &c.Addr,
			Sources:     cli.EnvVars("TAGRELEASE_ADDR"),
		},
		&cli.StringFlag{
			Name:        "allowed-repositories",
			Usage:       "Comma separated owner/name list allowed to trigger releases (all when empty)",
			Destination: &c.AllowedRepositories,
			Sources:     cli.EnvVars("TAGRELEASE_ALLOWED_REPOSITORIES"),
		},
		&cli.DurationFlag{
			Name:        "delivery-ttl",
			Usage:       "How long webhook delivery IDs are remembered to drop redeliveries",
			Value:       time.Hour,
			Destination: &c.DeliveryTTL,
			Sources:     cli.EnvVars("TAGRELEASE_DELIVERY_TTL"),
		},
	}
}
