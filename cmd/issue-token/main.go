package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/smbgAlokk/bharatforce/internal/domain/workflow"
	"github.com/smbgAlokk/bharatforce/internal/infrastructure/auth"
)

func main() {
	secret := flag.String("secret", "", "Signing secret (or set JWT_SECRET env var)")
	tenant := flag.String("tenant", "", "Tenant ID")
	user := flag.String("user", "", "User ID")
	role := flag.String("role", string(workflow.RoleEmployee), "EMPLOYEE, MANAGER, COMPANY_ADMIN or SUPER_ADMIN")
	ttl := flag.Duration("ttl", 12*time.Hour, "Token lifetime")
	flag.Parse()

	if *secret == "" {
		*secret = os.Getenv("JWT_SECRET")
	}
	if *secret == "" {
		fmt.Fprintf(os.Stderr, "ERROR: JWT_SECRET not set and no --secret flag provided\n")
		fmt.Fprintf(os.Stderr, "Usage: issue-token --tenant t1 --user emp-1 [--role MANAGER] [--ttl 12h]\n")
		os.Exit(1)
	}

	actor := workflow.Actor{TenantID: *tenant, UserID: *user, Role: workflow.Role(*role)}
	token, err := auth.NewTokenManager([]byte(*secret), *ttl).Issue(actor)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
