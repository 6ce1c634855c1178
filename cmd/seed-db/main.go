package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/cemention/internal/auth"
	"github.com/xenking/cemention/internal/domain/product"
	"github.com/xenking/cemention/internal/domain/user"
	"github.com/xenking/cemention/internal/storage/mongo"
	"github.com/xenking/cemention/internal/storage/postgres"
)

type productJSON struct {
	ID          string          `json:"id"`
	Brand       string          `json:"brand"`
	Grade       string          `json:"grade"`
	BasePrice   decimal.Decimal `json:"basePrice"`
	Image       string          `json:"image"`
	MinQuantity int             `json:"minQuantity"`
	Stock       int             `json:"stock"`
}

type options struct {
	driver        string
	databaseURL   string
	mongoURI      string
	mongoDatabase string
	productsFile  string
	adminEmail    string
	adminPassword string
	adminPhone    string
}

func main() {
	var opts options

	flag.StringVar(&opts.driver, "driver", "postgres", "storage backend: postgres or mongo")
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.mongoURI, "mongo-uri", "", "MongoDB connection URI (or MONGODB_URI env)")
	flag.StringVar(&opts.mongoDatabase, "mongo-database", "cemention", "MongoDB database name")
	flag.StringVar(&opts.productsFile, "products-file", "db/seed/products.json", "path to products JSON file, optionally gzip-compressed (.gz)")
	flag.StringVar(&opts.adminEmail, "admin-email", "", "admin account email (or CEMENTION_SEED_ADMIN_EMAIL env)")
	flag.StringVar(&opts.adminPassword, "admin-password", "", "admin account password (or CEMENTION_SEED_ADMIN_PASSWORD env)")
	flag.StringVar(&opts.adminPhone, "admin-phone", "0000000000", "admin contact phone")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.mongoURI == "" {
		opts.mongoURI = os.Getenv("MONGODB_URI")
	}
	if opts.adminEmail == "" {
		opts.adminEmail = os.Getenv("CEMENTION_SEED_ADMIN_EMAIL")
	}
	if opts.adminPassword == "" {
		opts.adminPassword = os.Getenv("CEMENTION_SEED_ADMIN_PASSWORD")
	}
	if opts.adminEmail == "" || opts.adminPassword == "" {
		slog.Error("admin credentials are required: set --admin-email and --admin-password")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, opts options) error {
	var (
		users    user.Repository
		products product.Repository
	)

	switch opts.driver {
	case "postgres":
		if opts.databaseURL == "" {
			return errors.New("database URL is required: set --database-url or DATABASE_URL")
		}
		slog.Info("connecting to database")

		pool, err := postgres.NewPool(ctx, opts.databaseURL)
		if err != nil {
			return errors.Wrap(err, "connect to database")
		}
		defer pool.Close()

		slog.Info("running migrations")

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}
		store := postgres.NewStore(pool)
		users, products = store.Users, store.Products
	case "mongo":
		if opts.mongoURI == "" {
			return errors.New("mongo URI is required: set --mongo-uri or MONGODB_URI")
		}
		slog.Info("connecting to mongo", slog.String("database", opts.mongoDatabase))

		client, err := mongo.Connect(ctx, opts.mongoURI)
		if err != nil {
			return errors.Wrap(err, "connect to mongo")
		}
		defer func() { _ = client.Disconnect(context.Background()) }()

		db := client.Database(opts.mongoDatabase)
		if err := mongo.EnsureIndexes(ctx, db); err != nil {
			return errors.Wrap(err, "ensure indexes")
		}
		store := mongo.NewStore(db)
		users, products = store.Users, store.Products
	default:
		return errors.Errorf("unknown driver %q", opts.driver)
	}

	if err := seedProducts(ctx, products, opts.productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedAdmin(ctx, users, opts); err != nil {
		return errors.Wrap(err, "seed admin")
	}

	return nil
}

func readProducts(path string) ([]productJSON, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open products file")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	var list []productJSON
	if err := json.NewDecoder(r).Decode(&list); err != nil {
		return nil, errors.Wrap(err, "parse products JSON")
	}
	return list, nil
}

func seedProducts(ctx context.Context, repo product.Repository, path string) error {
	slog.Info("reading products file", slog.String("path", path))

	list, err := readProducts(path)
	if err != nil {
		return err
	}

	slog.Info("upserting products", slog.Int("count", len(list)))

	now := time.Now().UTC()
	for _, in := range list {
		p := product.Product{
			ID:          in.ID,
			Brand:       in.Brand,
			Grade:       in.Grade,
			BasePrice:   in.BasePrice,
			Image:       in.Image,
			MinQuantity: in.MinQuantity,
			Stock:       in.Stock,
			CreatedAt:   now,
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		p.Normalize()
		if err := p.Validate(); err != nil {
			return errors.Wrapf(err, "product %s", p.ID)
		}

		err := repo.Update(ctx, &p)
		if errors.Is(err, product.ErrNotFound) {
			err = repo.Create(ctx, &p)
		}
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name()))
	}

	return nil
}

func seedAdmin(ctx context.Context, repo user.Repository, opts options) error {
	slog.Info("seeding admin account", slog.String("email", opts.adminEmail))

	email := strings.ToLower(strings.TrimSpace(opts.adminEmail))
	existing, err := repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role != user.RoleAdmin {
			if err := repo.UpdateRole(ctx, existing.ID, user.RoleAdmin); err != nil {
				return errors.Wrap(err, "promote existing account")
			}
		}
		slog.Info("admin account exists", slog.String("id", existing.ID))
		return nil
	case !errors.Is(err, user.ErrNotFound):
		return errors.Wrap(err, "look up admin")
	}

	hash, err := auth.HashPassword(opts.adminPassword, 0)
	if err != nil {
		return err
	}
	u := &user.User{
		ID:           uuid.NewString(),
		Name:         "Administrator",
		Email:        email,
		Phone:        opts.adminPhone,
		Role:         user.RoleAdmin,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := repo.Create(ctx, u); err != nil {
		return errors.Wrap(err, "create admin")
	}

	slog.Info("created admin account", slog.String("id", u.ID))

	return nil
}
