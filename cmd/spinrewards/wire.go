//go:build wireinject

package main

import (
	"github.com/Digital-Creators-Team/spin-rewards/config"
	appwire "github.com/Digital-Creators-Team/spin-rewards/wire"
	"github.com/google/wire"
)

func initializeService(cfg *config.Config) (*appwire.Service, func(), error) {
	wire.Build(appwire.FullSet)
	return nil, nil, nil
}
