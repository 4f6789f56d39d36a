package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedProducts(db)
	seedDenominations(db)

	log.Println("Seeding completed successfully!")
}

func seedProducts(db *sql.DB) {
	products := []struct {
		Code       string
		Name       string
		Stock      int64
		UnitPrice  string
		TaxPercent string
	}{
		{"NB001", "Notebook", 50, "50.00", "5.00"},
		{"PEN01", "Pen", 100, "10.00", "12.00"},
		{"BP01", "Backpack", 20, "1200.00", "18.00"},
		{"MUG01", "Coffee Mug", 40, "150.00", "12.00"},
		{"USB32", "USB Drive 32GB", 35, "450.00", "18.00"},
	}

	fmt.Println("Seeding Products...")
	for _, p := range products {
		_, err := db.Exec(`
			INSERT INTO products (code, name, stock, unit_price, tax_percent)
			VALUES ($1, $2, $3, $4::numeric, $5::numeric)
			ON CONFLICT (code) DO UPDATE SET
				name = EXCLUDED.name,
				stock = EXCLUDED.stock,
				unit_price = EXCLUDED.unit_price,
				tax_percent = EXCLUDED.tax_percent;
		`, p.Code, p.Name, p.Stock, p.UnitPrice, p.TaxPercent)
		if err != nil {
			log.Printf("Failed to seed product %s: %v", p.Code, err)
		}
	}
}

func seedDenominations(db *sql.DB) {
	denominations := []struct {
		Value int64
		Count int64
	}{
		{500, 10},
		{50, 20},
		{20, 30},
		{10, 50},
		{5, 100},
		{2, 200},
		{1, 300},
	}

	fmt.Println("Seeding Denominations...")
	for _, d := range denominations {
		_, err := db.Exec(`
			INSERT INTO denominations (value, count_available)
			VALUES ($1, $2)
			ON CONFLICT (value) DO UPDATE SET count_available = EXCLUDED.count_available;
		`, d.Value, d.Count)
		if err != nil {
			log.Printf("Failed to seed denomination %d: %v", d.Value, err)
		}
	}
}
