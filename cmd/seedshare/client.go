package main

import (
	"seedshare/internal/api"
	"seedshare/internal/config"
)

func withClient(cfg *config.Config, fn func(*api.Client) error) error {
	return fn(api.NewClient(cfg.APIURL))
}
