// seed inserts a demo organization's connection, automation schedule, and
// validation rules into the local dev database.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/sparvidata/automation-core/internal/connector"
	"github.com/sparvidata/automation-core/internal/domain"
	"github.com/sparvidata/automation-core/internal/infrastructure/postgres"
)

// seedOrganizationID is a fixed organization for local dev seeding.
var seedOrganizationID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set — run: direnv allow")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	connections := postgres.NewConnectionRepository(pool)
	configs := postgres.NewAutomationConnectionConfigRepository(pool)
	rules := postgres.NewValidationRuleRepository(pool)

	creds, err := json.Marshal(connector.Credentials{
		Host:     "localhost",
		Port:     5432,
		Database: "demo",
		Username: "demo",
		Password: "demo",
		Schema:   "public",
	})
	if err != nil {
		log.Fatalf("marshal seed credentials: %v", err)
	}

	conn, err := connections.Create(ctx, &domain.Connection{
		OrganizationID: seedOrganizationID,
		Name:           "Seed Postgres Connection",
		Type:           domain.ConnectionPostgreSQL,
		Credentials:    creds,
		IsDefault:      true,
	})
	if err != nil {
		log.Fatalf("seed connection: %v", err)
	}
	fmt.Printf("Connection created: %s\n", conn.ID)

	cfg := domain.DefaultScheduleConfig()
	cfg[domain.AutomationValidationAutomation] = domain.Schedule{
		Enabled: true, Type: domain.ScheduleDaily, Time: "05:00", Timezone: "UTC",
	}
	if _, err := configs.Upsert(ctx, &domain.AutomationConnectionConfig{
		ConnectionID:   conn.ID,
		OrganizationID: seedOrganizationID,
		ScheduleConfig: cfg,
	}); err != nil {
		log.Fatalf("seed schedule config: %v", err)
	}
	fmt.Println("Schedule config created: metadata refresh daily 02:00 UTC, schema detection daily 03:00 UTC, validation daily 05:00 UTC")

	expected, err := json.Marshal(0)
	if err != nil {
		log.Fatalf("marshal expected value: %v", err)
	}

	rule, err := rules.Create(ctx, &domain.ValidationRule{
		OrganizationID: seedOrganizationID,
		ConnectionID:   conn.ID,
		TableName:      "orders",
		Name:           "no_null_customer_id",
		Query:          "SELECT COUNT(*) FROM orders WHERE customer_id IS NULL",
		Operator:       domain.OperatorEquals,
		ExpectedValue:  expected,
		IsActive:       true,
	})
	if err != nil {
		log.Fatalf("seed validation rule: %v", err)
	}
	fmt.Printf("Validation rule created: %s\n", rule.ID)

	fmt.Println()
	fmt.Println("How to test:")
	fmt.Println()
	fmt.Println("  GET  /v1/connections/" + conn.ID.String() + "/schedule")
	fmt.Println("  POST /v1/connections/" + conn.ID.String() + "/jobs   {\"automationType\":\"metadata_refresh\"}")
	fmt.Println("  GET  /v1/connections/" + conn.ID.String() + "/jobs/summary")
}
