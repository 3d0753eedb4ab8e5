package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	mysqlrepo "loan-ledger/internal/adapter/repository/mysql"
	"loan-ledger/internal/collateral"
	"loan-ledger/internal/config"
	"loan-ledger/internal/domain/asset"
	"loan-ledger/internal/domain/loan"
	"loan-ledger/internal/infrastructure/db"
	"loan-ledger/internal/ledger"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	testSecret = "0123456789abcdef0123"
	borrower   = "0x742d35cc6634c0532925a3b844bc9e7595f0beb3"
)

func quiet() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// seedSQLite writes one deposit and one borrow walked to approved.
func seedSQLite(t *testing.T, path string) {
	t.Helper()
	gdb, err := db.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sqlDB, _ := gdb.DB()
	defer sqlDB.Close()
	if err := mysqlrepo.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	l := ledger.New(mysqlrepo.NewJournal(mysqlrepo.NewGormUoW(gdb), mysqlrepo.NewEntryRepository(gdb), mysqlrepo.NewBindingRepository(gdb)), ledger.WithLogger(quiet()))

	ctx := context.Background()
	if _, err := l.Create(ctx, ledger.CreateInput{Kind: loan.KindDeposit, Asset: asset.DAI, Amount: decimal.NewFromInt(10), Borrower: borrower}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	d, _ := collateral.NewVerifier(0).Digest([]byte("bill of sale"))
	rec, err := l.Create(ctx, ledger.CreateInput{Kind: loan.KindBorrow, Asset: asset.ETH, Amount: decimal.NewFromInt(1), Borrower: borrower, CollateralDigest: d.String()})
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	for _, s := range []loan.Status{loan.StatusPendingVerification, loan.StatusApproved} {
		if _, err := l.Transition(ctx, rec.LoanID, s); err != nil {
			t.Fatalf("transition %s: %v", s, err)
		}
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestReplay_SQLiteWithAudit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	seedSQLite(t, path)

	t.Setenv("SESSION_SECRET", testSecret)
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", path)

	out, err := run(t, "replay", "--audit")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	for _, want := range []string{"entries: 4", "loans: 2", "audited: 2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
}

func TestReplay_StoreFlagOverridesEnv(t *testing.T) {
	t.Setenv("SESSION_SECRET", testSecret)
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "unused.db"))

	_, err := run(t, "replay", "--store=memory")
	if !errors.Is(err, errNoJournal) {
		t.Fatalf("want errNoJournal, got %v", err)
	}
}

func TestSetup_RejectsInvalidConfig(t *testing.T) {
	t.Setenv("SESSION_SECRET", "short")
	if _, err := run(t, "replay"); err == nil || !strings.Contains(err.Error(), "SESSION_SECRET") {
		t.Fatalf("want SESSION_SECRET error, got %v", err)
	}
}

func TestOpenJournal_Memory(t *testing.T) {
	j, closeFn, err := openJournal(&config.Config{StoreDriver: config.DriverMemory}, quiet())
	if err != nil || j == nil {
		t.Fatalf("openJournal: %v", err)
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, _, err := openJournal(&config.Config{StoreDriver: "postgres"}, quiet()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOpenRedis_Disabled(t *testing.T) {
	rdb, store, err := openRedis(&config.Config{RedisAddr: ""}, quiet())
	if err != nil || rdb != nil || store == nil {
		t.Fatalf("want in-process store, got %v / %v / %v", rdb, store, err)
	}
}
