package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/mwakio/go-mizani/core/changeset"
	"github.com/mwakio/go-mizani/core/query"
	"github.com/mwakio/go-mizani/core/repo"
	"github.com/mwakio/go-mizani/core/schema"
	"github.com/mwakio/go-mizani/sqlite"
)

const dbFileName = "users.db"

const usersDDL = `
CREATE TABLE "users" (
	"id" INTEGER PRIMARY KEY AUTOINCREMENT,
	"username" TEXT,
	"email" TEXT,
	"password_hash" TEXT,
	"is_active" INTEGER
);
CREATE UNIQUE INDEX "unique_usernames" ON "users" ("username");
CREATE UNIQUE INDEX "unique_emails" ON "users" ("email");
`

func main() {
	// Start fresh on every run; the demo applies its own DDL directly.
	if err := os.Remove(dbFileName); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to remove existing database file %s: %v", dbFileName, err)
	}

	db, err := sql.Open("sqlite3", dbFileName)
	if err != nil {
		log.Fatalf("Failed to open database connection: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(usersDDL); err != nil {
		log.Fatalf("Failed to create users table: %v", err)
	}

	users := schema.MustDefine("users", []schema.FieldSpec{
		{Name: "username", Kind: schema.KindString},
		{Name: "email", Kind: schema.KindString},
		{Name: "password", Kind: schema.KindString, Virtual: true},
		{Name: "password_confirmation", Kind: schema.KindString, Virtual: true},
		{Name: "password_hash", Kind: schema.KindString},
		{Name: "is_active", Kind: schema.KindBoolean, Default: true},
	},
		schema.WithUniqueIndex("unique_usernames", "username"),
		schema.WithUniqueIndex("unique_emails", "email"),
	)

	registry := schema.NewRegistry()
	if err := registry.Register(users); err != nil {
		log.Fatalf("Failed to register users descriptor: %v", err)
	}

	store, err := repo.New(
		sqlite.NewAdapter(db, nil),
		sqlite.NewCompiler(registry),
		registry,
		nil,
	)
	if err != nil {
		log.Fatalf("Failed to initialize repo: %v", err)
	}

	store.Subscribe(repo.EventInserted, func(ctx context.Context, event repo.Event) error {
		fmt.Printf("inserted into %s: %v\n", event.Relation, event.Entity["username"])
		return nil
	})

	ctx := context.Background()

	register := func(params map[string]any) {
		cs := changeset.Cast(users, schema.Entity{}, params,
			[]string{"username", "email", "password", "password_confirmation"}).
			ValidateRequired("username", "email", "password").
			ValidateLength("username", changeset.Length{Min: 3, Max: 32}).
			ValidateLength("password", changeset.Length{Min: 8, MinMessage: "too short"}).
			ValidateConfirmation("password").
			UniqueConstraint("username", "unique_usernames").
			UniqueConstraint("email", "unique_emails")

		if password, ok := cs.GetChange("password"); ok && cs.Valid() {
			// Stand-in for a real password hash; runs after the validations
			// that inspect the raw input.
			cs.PutChange("password_hash", fmt.Sprintf("hashed:%v", password))
		}

		entity, invalid, err := store.Insert(ctx, cs)
		switch {
		case err != nil:
			fmt.Printf("storage failure: %v\n", err)
		case invalid != nil:
			fmt.Printf("rejected %v:\n", params["username"])
			for _, fieldErr := range invalid.Errors() {
				fmt.Printf("  %s: %s\n", fieldErr.Field, fieldErr.Message)
			}
		default:
			fmt.Printf("registered user #%v\n", entity["id"])
		}
	}

	register(map[string]any{
		"username":              "doomspork",
		"email":                 "sean@example.com",
		"password":              "correct horse battery staple",
		"password_confirmation": "correct horse battery staple",
	})

	// Too-short password plus mismatched confirmation: both errors come back
	// in one pass.
	register(map[string]any{
		"username":              "impostor",
		"email":                 "impostor@example.com",
		"password":              "short",
		"password_confirmation": "shorter",
	})

	// Duplicate username: passes local validation, rejected by the store's
	// unique index and mapped back onto the changeset.
	register(map[string]any{
		"username":              "doomspork",
		"email":                 "other@example.com",
		"password":              "correct horse battery staple",
		"password_confirmation": "correct horse battery staple",
	})

	active, err := store.All(ctx, query.From("users", "u").
		Where(query.Eq(query.Col("u", "is_active"), query.Val(true))).
		OrderBy(query.Desc(query.Col("u", "id")), query.Asc(query.Col("u", "username"))))
	if err != nil {
		log.Fatalf("Failed to query users: %v", err)
	}

	type userRow struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	for _, user := range active {
		row, err := schema.ToStruct[userRow](user)
		if err != nil {
			log.Fatalf("Failed to decode user row: %v", err)
		}
		fmt.Printf("active: %s <%s> (#%d)\n", row.Username, row.Email, row.ID)
	}
}
