package main

import (
	"squash-booking-bot/internal/bootstrap"
)

func main() {
	bootstrap.NewApp().Run()
}
