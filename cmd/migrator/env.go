package main

import (
	"os"

	"github.com/joho/godotenv"
)

func envConfigPath() string {
	_ = godotenv.Load()
	return os.Getenv("CONFIG_PATH")
}
