package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/intervia/proctor-backend/internal/config"
	"github.com/intervia/proctor-backend/internal/database"
	"github.com/intervia/proctor-backend/internal/logger"
	"github.com/intervia/proctor-backend/internal/model"
	"github.com/intervia/proctor-backend/internal/repository"
)

// Seeds a demo domain with a small question bank covering all three question
// types, plus a handful of single-use access codes printed to stdout.
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	domainRepo := repository.NewDomainRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	codeRepo := repository.NewAccessCodeRepository(pool)

	fmt.Println("=== Seeding Question Bank ===")

	domain := &model.Domain{Name: "Backend Engineering", Slug: "backend"}
	if err := domainRepo.Create(ctx, domain); err != nil {
		log.Fatal().Err(err).Msg("Failed to create domain")
	}
	fmt.Printf("Domain %q ready (ID: %s)\n", domain.Name, domain.ID)

	mcOptions, _ := json.Marshal([]map[string]string{
		{"key": "A", "text": "The connection is closed immediately"},
		{"key": "B", "text": "The handler goroutine leaks until the read blocks forever"},
		{"key": "C", "text": "The request context is cancelled"},
		{"key": "D", "text": "Nothing, the runtime reaps it"},
	})
	codingTests, _ := json.Marshal([]map[string]string{
		{"input": "[3,1,2]", "expected": "[1,2,3]"},
		{"input": "[]", "expected": "[]"},
	})

	questions := []model.Question{
		{
			Text:             "What happens to an HTTP handler goroutine in Go when the client disconnects and the handler never reads the request context?",
			Type:             model.QuestionTypeMultipleChoice,
			Difficulty:       "medium",
			ExperienceLevel:  "mid",
			MaxScore:         10,
			TimeLimitSeconds: 120,
			Options:          mcOptions,
			CorrectOption:    "C",
		},
		{
			Text:             "Explain the trade-offs between optimistic and pessimistic locking for a seat reservation system. When would you choose each?",
			Type:             model.QuestionTypeFreeText,
			Difficulty:       "medium",
			ExperienceLevel:  "mid",
			MaxScore:         20,
			TimeLimitSeconds: 420,
		},
		{
			Text:             "Implement a function that sorts a slice of integers without using the standard library sort package.",
			Type:             model.QuestionTypeCoding,
			Difficulty:       "easy",
			ExperienceLevel:  "mid",
			MaxScore:         30,
			TimeLimitSeconds: 900,
			StarterCode:      "package main\n\nfunc sortInts(xs []int) []int {\n\t// your code here\n\treturn xs\n}\n",
			Language:         "go",
			TestCases:        codingTests,
		},
	}

	created := 0
	for i := range questions {
		questions[i].DomainID = domain.ID
		if err := questionRepo.Create(ctx, &questions[i]); err != nil {
			fmt.Printf("Error creating question %d: %v\n", i+1, err)
			continue
		}
		created++
	}
	fmt.Printf("Created %d/%d questions\n", created, len(questions))

	fmt.Println("\n=== Generating Access Codes ===")
	expires := time.Now().Add(14 * 24 * time.Hour)
	for i := 1; i <= 3; i++ {
		label := fmt.Sprintf("DEMO%03d", i)
		plaintext := fmt.Sprintf("%s-%s", label, randomSecret())

		hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), cfg.BcryptCost)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to hash access code")
		}

		code := &model.AccessCode{
			CodeHash:  string(hash),
			Label:     label,
			DomainID:  domain.ID,
			ExpiresAt: &expires,
		}
		if err := codeRepo.Create(ctx, code); err != nil {
			fmt.Printf("Error creating access code %s: %v\n", label, err)
			continue
		}
		// Plaintext is shown exactly once; only the hash is stored.
		fmt.Printf("  %s\n", plaintext)
	}

	fmt.Println("\nSeed completed!")
}

func randomSecret() string {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	for i := range b {
		b[i] = alphabet[int(b[i])%len(alphabet)]
	}
	return string(b)
}
