package database

import (
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
)

func TestMySQLConfig(t *testing.T) {
	dsn := mysqlConfig("slotta", "p@ss:word", "db.internal", "3306", "slotta").FormatDSN()
	got, err := mysql.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("ParseDSN(%q): %v", dsn, err)
	}
	if got.User != "slotta" || got.Passwd != "p@ss:word" {
		t.Fatalf("credentials lost in %q", dsn)
	}
	if got.Addr != "db.internal:3306" || got.DBName != "slotta" {
		t.Fatalf("addr=%q db=%q", got.Addr, got.DBName)
	}
	if !got.ParseTime || got.Loc != time.UTC {
		t.Fatalf("times must parse as UTC: %q", dsn)
	}
	if !got.ClientFoundRows {
		t.Fatalf("status updates need matched-row counts: %q", dsn)
	}
	if got.MultiStatements {
		t.Fatalf("multi statements must stay off: %q", dsn)
	}
	if got.Params["charset"] != "utf8mb4" {
		t.Fatalf("charset=%q", got.Params["charset"])
	}

	v6 := mysqlConfig("root", "", "::1", "3307", "slotta")
	if v6.Addr != "[::1]:3307" {
		t.Fatalf("ipv6 addr=%q", v6.Addr)
	}
}
