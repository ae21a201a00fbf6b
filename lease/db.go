// Package lease persists address leases in SQLite, handing out new
// addresses in random order through the allocator.
package lease

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"net/netip"
	"net/url"
	"path/filepath"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	_ "modernc.org/sqlite"

	"github.com/Snawoot/randlease/allocator"
	"github.com/Snawoot/randlease/hosts"
)

const (
	allocRetries            = 20
	cleanupDebounceInterval = 1 * time.Second
	cacheCleanupInterval    = 1 * time.Minute
)

var (
	initQueries = []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA synchronous=NORMAL`,
		`CREATE TABLE IF NOT EXISTS leases (
  client_id TEXT NOT NULL,
  addr TEXT NOT NULL,
  hostname TEXT NOT NULL,
  expire INTEGER NOT NULL,
  PRIMARY KEY (client_id),
  UNIQUE (addr)
 ) STRICT`,
		`CREATE INDEX IF NOT EXISTS leases_expire_idx ON leases (expire ASC)`,
	}

	ErrNoFreeAddresses      = errors.New("no free addresses left in the pool")
	ErrReservedAddressInUse = errors.New("reserved address is leased by another client")
)

type Manager struct {
	db          *sql.DB
	alloc       *allocator.Allocator
	reserved    *hosts.Reservations
	cache       *cache.Cache
	lastCleanup time.Time
	cleanupMux  sync.RWMutex
}

func New(dbPath string, alloc *allocator.Allocator, reserved *hosts.Reservations) (*Manager, error) {
	if reserved == nil {
		reserved = hosts.New()
	}
	dbURL := url.URL{
		Scheme:   "file",
		Path:     filepath.Join(dbPath, "leases.db"),
		OmitHost: true,
	}
	db, err := sql.Open("sqlite", dbURL.String())
	if err != nil {
		return nil, fmt.Errorf("can't open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("DB ping failed: %w", err)
	}

	for _, query := range initQueries {
		if _, err = db.Exec(query); err != nil {
			return nil, fmt.Errorf("setup command (%q) error: %w", query, err)
		}
	}

	return &Manager{
		db:       db,
		alloc:    alloc,
		reserved: reserved,
		cache:    cache.New(cache.NoExpiration, cacheCleanupInterval),
	}, nil
}

// EnsureLease returns the address leased to the client, extending an
// existing lease or allocating a randomly picked free address. Clients
// with a host reservation always get their reserved address.
func (m *Manager) EnsureLease(clientID, hostname string, ttl time.Duration) (netip.Addr, error) {
	m.cleanup()

	expire := time.Now().Unix() + int64(math.Round(ttl.Seconds()))

	if addr, ok := m.reserved.Lookup(clientID); ok {
		return m.leaseReserved(clientID, hostname, addr, expire, ttl)
	}

	row := m.db.QueryRow(
		`UPDATE leases SET expire = ?, hostname = ? WHERE client_id = ? RETURNING addr`,
		expire, hostname, clientID,
	)
	addr, err := scanAddr(row)
	if err == nil {
		m.cache.Set(clientID, addr, ttl)
		return addr, nil
	}
	if err != sql.ErrNoRows {
		return netip.Addr{}, fmt.Errorf("renewal query error: %w", err)
	}

	resetDone := false
	for i := 0; i < allocRetries; i++ {
		candidate, err := m.alloc.Next()
		if err != nil {
			if !errors.Is(err, allocator.ErrExhausted) {
				return netip.Addr{}, fmt.Errorf("allocator error: %w", err)
			}
			if resetDone {
				break
			}
			// The pass went over every address. Reclaim expired leases
			// and run one more pass before giving up.
			if err := m.purgeExpired(); err != nil {
				return netip.Addr{}, fmt.Errorf("can't purge expired leases: %w", err)
			}
			m.alloc.Reset()
			resetDone = true
			continue
		}
		if _, taken := m.reserved.Holder(candidate); taken {
			continue
		}
		row := m.db.QueryRow(
			`INSERT INTO leases (client_id, addr, hostname, expire) VALUES (?, ?, ?, ?)
			ON CONFLICT (addr) DO NOTHING RETURNING addr`,
			clientID, candidate.String(), hostname, expire,
		)
		addr, err := scanAddr(row)
		if err != nil {
			if err == sql.ErrNoRows {
				// Candidate is leased already, try the next one.
				continue
			}
			return netip.Addr{}, fmt.Errorf("insert query error: %w", err)
		}
		m.cache.Set(clientID, addr, ttl)
		return addr, nil
	}
	return netip.Addr{}, ErrNoFreeAddresses
}

func (m *Manager) leaseReserved(clientID, hostname string, addr netip.Addr, expire int64, ttl time.Duration) (netip.Addr, error) {
	row := m.db.QueryRow(
		`INSERT INTO leases (client_id, addr, hostname, expire) VALUES (?, ?, ?, ?)
		ON CONFLICT (client_id) DO UPDATE
			SET addr = excluded.addr, hostname = excluded.hostname, expire = excluded.expire
		ON CONFLICT (addr) DO NOTHING RETURNING addr`,
		clientID, addr.String(), hostname, expire,
	)
	res, err := scanAddr(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return netip.Addr{}, ErrReservedAddressInUse
		}
		return netip.Addr{}, fmt.Errorf("reserved upsert query error: %w", err)
	}
	m.cache.Set(clientID, res, ttl)
	return res, nil
}

// Lookup returns the active lease of a client, if any.
func (m *Manager) Lookup(clientID string) (addr netip.Addr, ok bool, err error) {
	if cached, found := m.cache.Get(clientID); found {
		return cached.(netip.Addr), true, nil
	}
	row := m.db.QueryRow(
		`SELECT addr FROM leases WHERE client_id = ? AND expire >= ? LIMIT 1`,
		clientID, time.Now().Unix(),
	)
	addr, err = scanAddr(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return netip.Addr{}, false, nil
		}
		return netip.Addr{}, false, fmt.Errorf("lookup query error: %w", err)
	}
	return addr, true, nil
}

// Holder returns the client holding an active lease on the address.
func (m *Manager) Holder(addr netip.Addr) (clientID string, ok bool, err error) {
	row := m.db.QueryRow(
		`SELECT client_id FROM leases WHERE addr = ? AND expire >= ? LIMIT 1`,
		addr.String(), time.Now().Unix(),
	)
	if err := row.Scan(&clientID); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("holder query error: %w", err)
	}
	return clientID, true, nil
}

// Release drops the client's lease. Releasing a client without a lease
// is not an error. The address becomes allocatable again on the next
// allocation pass.
func (m *Manager) Release(clientID string) error {
	if _, err := m.db.Exec(`DELETE FROM leases WHERE client_id = ?`, clientID); err != nil {
		return fmt.Errorf("release query error: %w", err)
	}
	m.cache.Delete(clientID)
	return nil
}

func (m *Manager) cleanup() {
	m.cleanupMux.RLock()
	lastCleanup := m.lastCleanup
	m.cleanupMux.RUnlock()

	if time.Since(lastCleanup) > cleanupDebounceInterval {
		m.cleanupMux.Lock()
		defer m.cleanupMux.Unlock()
		if err := m.purgeExpired(); err != nil {
			log.Printf("DB cleanup failed: %v", err)
		}
		m.lastCleanup = time.Now()
	}
}

func (m *Manager) purgeExpired() error {
	_, err := m.db.Exec(`DELETE FROM leases WHERE expire < ?`, time.Now().Unix())
	return err
}

func (m *Manager) Close() error {
	return m.db.Close()
}

func scanAddr(row *sql.Row) (netip.Addr, error) {
	var ipStr string
	if err := row.Scan(&ipStr); err != nil {
		return netip.Addr{}, err
	}
	addr, err := netip.ParseAddr(ipStr)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("can't parse IP address %q from DB: %w", ipStr, err)
	}
	return addr, nil
}
