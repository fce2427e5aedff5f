package knxip

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-knxip/internal/knx"
	"github.com/nerrad567/gray-logic-knxip/internal/tunnel"
)

// ErrRecorderStopped is returned by record calls before Start or after Stop.
var ErrRecorderStopped = errors.New("knxip: recorder not running")

// Recorder passively builds an inventory of the bus in SQLite: every
// telegram source, every destination group address with its last value,
// and every gateway that answered discovery.
//
// The schema comes from the migrations package. All methods are safe for
// concurrent use.
type Recorder struct {
	db *sql.DB

	gaStmt      *sql.Stmt
	deviceStmt  *sql.Stmt
	gatewayStmt *sql.Stmt
	mu          sync.Mutex
}

// GroupAddressRecord is one row of knx_group_addresses.
type GroupAddressRecord struct {
	GroupAddress    string    `json:"group_address"`
	DPT             string    `json:"dpt"`
	LastValue       string    `json:"last_value"`
	FirstSeen       time.Time `json:"first_seen"`
	LastSeen        time.Time `json:"last_seen"`
	MessageCount    int       `json:"message_count"`
	HasReadResponse bool      `json:"has_read_response"`
}

// DeviceRecord is one row of knx_devices.
type DeviceRecord struct {
	IndividualAddress string    `json:"individual_address"`
	FirstSeen         time.Time `json:"first_seen"`
	LastSeen          time.Time `json:"last_seen"`
	MessageCount      int       `json:"message_count"`
}

// GatewayRecord is one row of knx_gateways.
type GatewayRecord struct {
	Endpoint          string    `json:"endpoint"`
	Name              string    `json:"name"`
	IndividualAddress string    `json:"individual_address"`
	Serial            string    `json:"serial"`
	MAC               string    `json:"mac"`
	Tunnelling        bool      `json:"tunnelling"`
	FirstSeen         time.Time `json:"first_seen"`
	LastSeen          time.Time `json:"last_seen"`
}

// NewRecorder returns a recorder over db. Call Start before recording.
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// Start prepares the upsert statements. Calling it twice is a no-op.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.gaStmt != nil {
		return nil
	}

	gaStmt, err := r.db.PrepareContext(ctx, `
		INSERT INTO knx_group_addresses (group_address, dpt, last_value, first_seen, last_seen, message_count, has_read_response)
		VALUES (?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(group_address) DO UPDATE SET
			dpt = excluded.dpt,
			last_value = CASE WHEN excluded.last_value = '' THEN last_value ELSE excluded.last_value END,
			last_seen = excluded.last_seen,
			message_count = message_count + 1,
			has_read_response = MAX(has_read_response, excluded.has_read_response)
	`)
	if err != nil {
		return fmt.Errorf("preparing group address upsert: %w", err)
	}

	deviceStmt, err := r.db.PrepareContext(ctx, `
		INSERT INTO knx_devices (individual_address, first_seen, last_seen, message_count)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(individual_address) DO UPDATE SET
			last_seen = excluded.last_seen,
			message_count = message_count + 1
	`)
	if err != nil {
		gaStmt.Close()
		return fmt.Errorf("preparing device upsert: %w", err)
	}

	gatewayStmt, err := r.db.PrepareContext(ctx, `
		INSERT INTO knx_gateways (control_endpoint, name, individual_address, serial_number, mac_address, tunnelling, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(control_endpoint) DO UPDATE SET
			name = excluded.name,
			individual_address = excluded.individual_address,
			serial_number = excluded.serial_number,
			mac_address = excluded.mac_address,
			tunnelling = excluded.tunnelling,
			last_seen = excluded.last_seen
	`)
	if err != nil {
		gaStmt.Close()
		deviceStmt.Close()
		return fmt.Errorf("preparing gateway upsert: %w", err)
	}

	r.gaStmt, r.deviceStmt, r.gatewayStmt = gaStmt, deviceStmt, gatewayStmt
	return nil
}

// Stop releases the prepared statements.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, st := range []*sql.Stmt{r.gaStmt, r.deviceStmt, r.gatewayStmt} {
		if st != nil {
			st.Close()
		}
	}
	r.gaStmt, r.deviceStmt, r.gatewayStmt = nil, nil, nil
}

// RecordTelegram upserts the source device and destination group
// address. Source 0.0.0 is never recorded. Reads leave the stored value
// untouched.
func (r *Recorder) RecordTelegram(ctx context.Context, tel knx.Telegram, dpt knx.DPT) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.gaStmt == nil {
		return ErrRecorderStopped
	}

	now := tel.Timestamp
	if now.IsZero() {
		now = time.Now()
	}
	ts := now.Unix()

	if tel.Source != 0 {
		if _, err := r.deviceStmt.ExecContext(ctx, tel.Source.String(), ts, ts); err != nil {
			return fmt.Errorf("recording device %s: %w", tel.Source, err)
		}
	}

	value := ""
	if !tel.IsRead() {
		value = knx.Display(tel.Data, dpt)
	}
	if _, err := r.gaStmt.ExecContext(ctx, tel.Destination.String(), string(dpt), value, ts, ts, boolInt(tel.IsResponse())); err != nil {
		return fmt.Errorf("recording group address %s: %w", tel.Destination, err)
	}
	return nil
}

// RecordGateway upserts a discovered gateway keyed by its endpoint.
func (r *Recorder) RecordGateway(ctx context.Context, gw tunnel.Gateway) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.gatewayStmt == nil {
		return ErrRecorderStopped
	}

	msg := NewGatewayMessage(gw)
	seen := gw.SeenAt
	if seen.IsZero() {
		seen = time.Now()
	}
	ts := seen.Unix()

	_, err := r.gatewayStmt.ExecContext(ctx,
		msg.Endpoint, msg.Name, msg.IndividualAddress, msg.Serial, msg.MAC,
		boolInt(msg.Tunnelling), ts, ts)
	if err != nil {
		return fmt.Errorf("recording gateway %s: %w", msg.Endpoint, err)
	}
	return nil
}

// GroupAddresses lists recorded group addresses, most recent first.
func (r *Recorder) GroupAddresses(ctx context.Context) ([]GroupAddressRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT group_address, dpt, last_value, first_seen, last_seen, message_count, has_read_response
		FROM knx_group_addresses ORDER BY last_seen DESC, group_address
	`)
	if err != nil {
		return nil, fmt.Errorf("querying group addresses: %w", err)
	}
	defer rows.Close()

	var out []GroupAddressRecord
	for rows.Next() {
		var (
			rec         GroupAddressRecord
			first, last int64
			hasResponse int
		)
		if err := rows.Scan(&rec.GroupAddress, &rec.DPT, &rec.LastValue, &first, &last, &rec.MessageCount, &hasResponse); err != nil {
			return nil, fmt.Errorf("scanning group address: %w", err)
		}
		rec.FirstSeen, rec.LastSeen = time.Unix(first, 0), time.Unix(last, 0)
		rec.HasReadResponse = hasResponse != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Devices lists recorded source devices, most recent first.
func (r *Recorder) Devices(ctx context.Context) ([]DeviceRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT individual_address, first_seen, last_seen, message_count
		FROM knx_devices ORDER BY last_seen DESC, individual_address
	`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var out []DeviceRecord
	for rows.Next() {
		var (
			rec         DeviceRecord
			first, last int64
		)
		if err := rows.Scan(&rec.IndividualAddress, &first, &last, &rec.MessageCount); err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		rec.FirstSeen, rec.LastSeen = time.Unix(first, 0), time.Unix(last, 0)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Gateways lists recorded gateways, most recent first.
func (r *Recorder) Gateways(ctx context.Context) ([]GatewayRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT control_endpoint, name, individual_address, serial_number, mac_address, tunnelling, first_seen, last_seen
		FROM knx_gateways ORDER BY last_seen DESC, control_endpoint
	`)
	if err != nil {
		return nil, fmt.Errorf("querying gateways: %w", err)
	}
	defer rows.Close()

	var out []GatewayRecord
	for rows.Next() {
		var (
			rec         GatewayRecord
			tunnelling  int
			first, last int64
		)
		if err := rows.Scan(&rec.Endpoint, &rec.Name, &rec.IndividualAddress, &rec.Serial, &rec.MAC, &tunnelling, &first, &last); err != nil {
			return nil, fmt.Errorf("scanning gateway: %w", err)
		}
		rec.Tunnelling = tunnelling != 0
		rec.FirstSeen, rec.LastSeen = time.Unix(first, 0), time.Unix(last, 0)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
