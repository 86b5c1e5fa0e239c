package main

import "github.com/stoik/leaddesk/services/dashboard-service/internal/app"

func main() {
	app.Execute()
}
