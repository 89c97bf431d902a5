// Command admintoken prints a bearer token for the catalog admin routes.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"lounge_back_end/internal/config"
	"lounge_back_end/internal/utils"
)

func main() {
	subject := flag.String("sub", "ops", "token subject")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	cfg := config.Load()
	token, err := utils.GenerateAdminToken(cfg.AdminJWTSecret, *subject, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "admintoken:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
