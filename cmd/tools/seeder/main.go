package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	redis "github.com/redis/go-redis/v9"

	"github.com/motorcraft/backend-configurator/internal/catalog"
)

type seedColor struct {
	Name  string `json:"name"`
	Code  string `json:"code"`
	Price int64  `json:"price"`
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	seedUsers(ctx, pool)
	optionIDs := seedOptions(ctx, pool)
	packageIDs := seedPackages(ctx, pool, optionIDs)
	seedVehicles(ctx, pool, optionIDs, packageIDs)
	flushCatalogCache(ctx)

	log.Println("Seeding completed successfully!")
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool) {
	log.Println("Seeding users...")
	users := []struct {
		Name     string
		Email    string
		Password string
		Roles    []string
	}{
		{"Admin", "admin@motorcraft.example", "admin-change-me", []string{"admin"}},
		{"Dana Buyer", "dana@example.com", "password123", []string{"customer"}},
		{"Sam Rider", "sam@example.com", "password123", []string{"customer"}},
	}
	for _, u := range users {
		hash, err := argon2id.CreateHash(u.Password, argon2id.DefaultParams)
		if err != nil {
			log.Fatalf("hash password for %s: %v", u.Email, err)
		}
		_, err = pool.Exec(ctx, `
			INSERT INTO users (name, email, password_hash, roles)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (lower(email)) DO NOTHING`,
			u.Name, u.Email, hash, u.Roles,
		)
		if err != nil {
			log.Fatalf("seed user %s: %v", u.Email, err)
		}
	}
}

func seedOptions(ctx context.Context, pool *pgxpool.Pool) map[string]uuid.UUID {
	log.Println("Seeding options...")
	ids := map[string]uuid.UUID{}
	type opt struct {
		Key         string
		Name        string
		Category    string
		Subcategory string
		Price       int64
	}
	opts := []opt{
		{"sunroof", "Panoramic Sunroof", "exterior", "roof", 150_000},
		{"premium_audio", "Premium Audio System", "technology", "audio", 100_000},
		{"heated_seats", "Heated Front Seats", "comfort", "seats", 80_000},
		{"sport_exhaust", "Sport Exhaust", "performance", "exhaust", 220_000},
		{"quiet_exhaust", "Acoustic Comfort Exhaust", "comfort", "exhaust", 90_000},
		{"tow_hitch", "Tow Hitch", "utility", "towing", 60_000},
		{"brake_controller", "Trailer Brake Controller", "utility", "towing", 40_000},
		{"adaptive_cruise", "Adaptive Cruise Control", "technology", "driver-assist", 120_000},
	}
	for _, o := range opts {
		var id uuid.UUID
		err := pool.QueryRow(ctx, `
			INSERT INTO vehicle_options (name, category, subcategory, price)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			o.Name, o.Category, o.Subcategory, o.Price,
		).Scan(&id)
		if err != nil {
			log.Fatalf("seed option %s: %v", o.Name, err)
		}
		ids[o.Key] = id
	}

	// tow hitch requires the brake controller; the exhausts exclude each other
	mustExec(ctx, pool, `UPDATE vehicle_options SET dependencies = $2 WHERE id = $1`,
		ids["tow_hitch"], []uuid.UUID{ids["brake_controller"]})
	mustExec(ctx, pool, `UPDATE vehicle_options SET conflicts = $2 WHERE id = $1`,
		ids["sport_exhaust"], []uuid.UUID{ids["quiet_exhaust"]})
	mustExec(ctx, pool, `UPDATE vehicle_options SET conflicts = $2 WHERE id = $1`,
		ids["quiet_exhaust"], []uuid.UUID{ids["sport_exhaust"]})
	return ids
}

func seedPackages(ctx context.Context, pool *pgxpool.Pool, opts map[string]uuid.UUID) map[string]uuid.UUID {
	log.Println("Seeding packages...")
	ids := map[string]uuid.UUID{}
	type pkg struct {
		Key      string
		Name     string
		Type     string
		Price    int64
		Discount int
		Included []catalog.PackageOption
	}
	bundle := func(keys ...string) []catalog.PackageOption {
		out := make([]catalog.PackageOption, 0, len(keys))
		for _, key := range keys {
			out = append(out, catalog.PackageOption{OptionID: opts[key], Qty: 1})
		}
		return out
	}
	pkgs := []pkg{
		{"tech", "Tech Package", "technology", 550_000, 15, bundle("premium_audio", "adaptive_cruise")},
		{"comfort", "Comfort Package", "comfort", 200_000, 10, bundle("heated_seats", "quiet_exhaust")},
		{"towing", "Towing Package", "utility", 90_000, 10, bundle("tow_hitch", "brake_controller")},
	}
	for _, p := range pkgs {
		var id uuid.UUID
		err := pool.QueryRow(ctx, `
			INSERT INTO packages (name, type, price, discount_percent, included_options)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			p.Name, p.Type, p.Price, p.Discount, mustJSON(p.Included),
		).Scan(&id)
		if err != nil {
			log.Fatalf("seed package %s: %v", p.Name, err)
		}
		ids[p.Key] = id
	}
	return ids
}

func seedVehicles(ctx context.Context, pool *pgxpool.Pool, opts, pkgs map[string]uuid.UUID) {
	log.Println("Seeding vehicles...")
	allOptions := make([]uuid.UUID, 0, len(opts))
	for _, id := range opts {
		allOptions = append(allOptions, id)
	}
	allPackages := make([]uuid.UUID, 0, len(pkgs))
	for _, id := range pkgs {
		allPackages = append(allPackages, id)
	}

	standardColors := mustJSON([]seedColor{
		{"Arctic White", "#F4F6F5", 0},
		{"Midnight Blue", "#003366", 150_000},
		{"Graphite Grey", "#3C4146", 75_000},
	})
	type vehicle struct {
		Name         string
		Model        string
		Manufacturer string
		BasePrice    int64
		Category     string
		Year         int
		Specs        []byte
	}
	vehicles := []vehicle{
		{"Roadster GT", "RGT-26", "MotorCraft", 4_500_000, catalog.CategorySports, 2026,
			mustJSON(map[string]any{"engine": "3.0L twin-turbo", "horsepower": 450, "seats": 2})},
		{"Hauler X", "HX-26", "MotorCraft", 3_800_000, catalog.CategoryTruck, 2026,
			mustJSON(map[string]any{"engine": "5.6L V8", "towingLbs": 11000, "seats": 5})},
		{"City Sedan", "CS-26", "MotorCraft", 2_400_000, catalog.CategorySedan, 2026,
			mustJSON(map[string]any{"engine": "2.0L hybrid", "mpg": 52, "seats": 5})},
		{"Trail SUV", "TS-26", "MotorCraft", 3_200_000, catalog.CategorySUV, 2026,
			mustJSON(map[string]any{"engine": "2.5L turbo", "clearanceIn": 9.4, "seats": 7})},
	}
	for _, v := range vehicles {
		mustExec(ctx, pool, `
			INSERT INTO vehicles (name, model, manufacturer, base_price, category, year, specs, colors, available_options, available_packages)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			v.Name, v.Model, v.Manufacturer, v.BasePrice, v.Category, v.Year,
			v.Specs, standardColors, allOptions, allPackages,
		)
	}
}

func flushCatalogCache(ctx context.Context) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return
	}
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Printf("parse redis url: %v", err)
		return
	}
	client := redis.NewClient(redisOpts)
	defer func() { _ = client.Close() }()

	cache := catalog.NewCache(client, 0)
	if err := cache.Invalidate(ctx, "catalog:*"); err != nil {
		log.Printf("invalidate catalog cache: %v", err)
		return
	}
	log.Println("Catalog cache invalidated")
}

func mustExec(ctx context.Context, pool *pgxpool.Pool, sql string, args ...any) {
	if _, err := pool.Exec(ctx, sql, args...); err != nil {
		log.Fatalf("exec %q: %v", sql, err)
	}
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		log.Fatalf("marshal seed json: %v", err)
	}
	return data
}
