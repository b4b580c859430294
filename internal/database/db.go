package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alex65536/formgate/internal/userauth"
	"github.com/alex65536/formgate/internal/util/slogx"
	"github.com/alex65536/formgate/internal/webui"
	"github.com/gorilla/sessions"
	"github.com/wader/gormstore/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type Options struct {
	Path          string        `toml:"path"`
	Debug         bool          `toml:"debug"`
	SlowThreshold time.Duration `toml:"slow-threshold"`
	BusyTimeout   time.Duration `toml:"busy-timeout"`
	UseWAL        bool          `toml:"use-wal"`
}

func (o *Options) FillDefaults() {
	if o.Path == "" {
		o.Path = "formgate.db"
	}
	if o.SlowThreshold == 0 {
		o.SlowThreshold = 200 * time.Millisecond
	}
	if o.BusyTimeout == 0 {
		o.BusyTimeout = 1 * time.Minute
	}
}

type DB struct {
	db  *gorm.DB
	log *slog.Logger
}

var (
	_ userauth.DB               = (*DB)(nil)
	_ webui.SessionStoreFactory = (*DB)(nil)
)

func (d *DB) Close() {
	db, err := d.db.DB()
	if err != nil {
		d.log.Error("could not get underlying db", slogx.Err(err))
		return
	}
	if err := db.Close(); err != nil {
		d.log.Error("could not close db", slogx.Err(err))
	}
}

func buildPath(o Options) string {
	var params []string
	if o.UseWAL {
		params = append(params, "_journal_mode=WAL")
		params = append(params, "_synchronous=NORMAL")
	}
	params = append(params, fmt.Sprintf("_busy_timeout=%v", o.BusyTimeout.Milliseconds()))
	params = append(params, "_foreign_keys=1")
	sep := "?"
	if strings.Contains(o.Path, "?") {
		sep = "&"
	}
	return o.Path + sep + strings.Join(params, "&")
}

func New(log *slog.Logger, o Options) (*DB, error) {
	o.FillDefaults()

	log.Info("opening db", slog.String("path", o.Path))
	db, err := gorm.Open(sqlite.Open(buildPath(o)), &gorm.Config{
		Logger: Logger(log, o),
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	d := &DB{db: db, log: log}

	log.Info("migrating db")
	if err := db.AutoMigrate(models...); err != nil {
		d.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	log.Info("db opened")
	return d, nil
}

func (d *DB) CreateUser(ctx context.Context, user userauth.User) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var result []userauth.User
		err := tx.Where("username = ?", user.Username).Limit(1).Find(&result).Error
		if err != nil {
			return fmt.Errorf("search for user: %w", err)
		}
		if len(result) != 0 {
			return userauth.ErrUserAlreadyExists
		}
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
}

func (d *DB) GetUser(ctx context.Context, userID string) (userauth.User, error) {
	var users []userauth.User
	err := d.db.WithContext(ctx).Where("id = ?", userID).Limit(1).Find(&users).Error
	if err != nil {
		return userauth.User{}, fmt.Errorf("get user: %w", err)
	}
	if len(users) == 0 {
		return userauth.User{}, userauth.ErrUserNotFound
	}
	return users[0], nil
}

func (d *DB) GetUserByUsername(ctx context.Context, username string) (userauth.User, error) {
	var users []userauth.User
	err := d.db.WithContext(ctx).Where("username = ?", username).Limit(1).Find(&users).Error
	if err != nil {
		return userauth.User{}, fmt.Errorf("get user: %w", err)
	}
	if len(users) == 0 {
		return userauth.User{}, userauth.ErrUserNotFound
	}
	return users[0], nil
}

func (d *DB) ListUsers(ctx context.Context) ([]userauth.User, error) {
	var users []userauth.User
	err := d.db.WithContext(ctx).Order("created_at").Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (d *DB) CountUsers(ctx context.Context) (int64, error) {
	var cnt int64
	err := d.db.WithContext(ctx).Model(&userauth.User{}).Count(&cnt).Error
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return cnt, nil
}

func (d *DB) NewSessionStore(ctx context.Context, opts webui.SessionOptions) sessions.Store {
	s := gormstore.New(d.db, opts.Keys()...)
	go s.PeriodicCleanup(opts.CleanupInterval, ctx.Done())
	return s
}
