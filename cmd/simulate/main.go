package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/carecoord/internal/api"
	"github.com/hackgods/carecoord/internal/appointment"
	"github.com/hackgods/carecoord/internal/config"
	"github.com/hackgods/carecoord/internal/db"
	"github.com/hackgods/carecoord/internal/logging"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	Days         int // bookings land in the next Days days
	BookingRatio float64
	StatusRatio  float64
	ReadRatio    float64
	FamilyLimit  int
	PostgresDSN  string
	JWTSecret    string
}

type family struct {
	GuardianID  uuid.UUID
	DependentID uuid.UUID
}

type booked struct {
	ID             uuid.UUID
	ProfessionalID uuid.UUID
	PatientID      uuid.UUID
}

type DataPool struct {
	Families      []family
	Professionals []uuid.UUID
	mu            sync.RWMutex
	appointments  []booked
}

func (dp *DataPool) AddAppointment(b booked) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, b)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (booked, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return booked{}, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err == nil && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case err == nil && status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

// Stats returns avg, p50, p95 and max latency.
func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	latencies := append([]time.Duration(nil), om.Latencies...)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	at := func(pct int) time.Duration {
		i := len(latencies) * pct / 100
		if i >= len(latencies) {
			i = len(latencies) - 1
		}
		return latencies[i]
	}

	return sum / time.Duration(len(latencies)), at(50), at(95), latencies[len(latencies)-1]
}

type Metrics struct {
	Booking      OperationMetrics
	Status       OperationMetrics
	Availability OperationMetrics
	ReadByID     OperationMetrics
	List         OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	tokens  sync.Map // actor id + role -> signed token
	logger  *zap.Logger
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := logging.New("info", "console", "simulate")
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("simulator starting",
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Float64("booking", cfg.BookingRatio),
		zap.Float64("status", cfg.StatusRatio),
		zap.Float64("read", cfg.ReadRatio),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, 4, 0)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal("load data pool", zap.Error(err))
	}
	logger.Info("data pool loaded",
		zap.Int("families", len(dataPool.Families)),
		zap.Int("professionals", len(dataPool.Professionals)),
	)

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	sim.Run()
	sim.PrintReport()

	overlaps, err := countOverlaps(context.Background(), pgPool)
	if err != nil {
		logger.Fatal("overlap check", zap.Error(err))
	}
	fmt.Printf("Overlapping active bookings: %d\n", overlaps)
	if overlaps > 0 {
		os.Exit(1)
	}
}

func loadConfig() (SimConfig, error) {
	baseCfg, err := config.Load()
	if err != nil {
		return SimConfig{}, err
	}

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		Days:         getInt("SIM_DAYS", 5),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.5),
		StatusRatio:  getFloat("SIM_STATUS_RATIO", 0.2),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		FamilyLimit:  getInt("SIM_FAMILY_LIMIT", 2000),
		PostgresDSN:  baseCfg.PostgresDSN,
		JWTSecret:    baseCfg.JWTSecret,
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.StatusRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.StatusRatio /= total
		cfg.ReadRatio /= total
	}

	if cfg.Workers <= 0 {
		return cfg, fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return cfg, fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Days <= 0 {
		return cfg, fmt.Errorf("SIM_DAYS must be > 0")
	}
	return cfg, nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT guardian_id, id FROM dependents LIMIT $1`, cfg.FamilyLimit)
	if err != nil {
		return nil, fmt.Errorf("load dependents: %w", err)
	}
	for rows.Next() {
		var f family
		if err := rows.Scan(&f.GuardianID, &f.DependentID); err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.Families = append(dataPool.Families, f)
	}
	rows.Close()

	rows, err = pool.Query(ctx, `SELECT id FROM professionals WHERE active`)
	if err != nil {
		return nil, fmt.Errorf("load professionals: %w", err)
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.Professionals = append(dataPool.Professionals, id)
	}
	rows.Close()

	if len(dataPool.Families) == 0 {
		return nil, fmt.Errorf("no dependents loaded, run cmd/seed first")
	}
	if len(dataPool.Professionals) == 0 {
		return nil, fmt.Errorf("no active professionals loaded")
	}
	return dataPool, nil
}

// countOverlaps finds pairs of pending/confirmed bookings of one professional
// closer than the slot window. Anything above zero is a double booking.
func countOverlaps(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var n int
	err := pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments a
		JOIN appointments b
		  ON a.professional_id = b.professional_id AND a.id < b.id
		WHERE a.status IN ('pending', 'confirmed')
		  AND b.status IN ('pending', 'confirmed')
		  AND tstzrange(a.window_start, a.window_end, '[]') && tstzrange(b.window_start, b.window_end, '[]')
	`).Scan(&n)
	return n, err
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.StatusRatio:
				s.doStatusChange(ctx, rng)
			default:
				switch rng.Intn(3) {
				case 0:
					s.doAvailability(ctx, rng)
				case 1:
					s.doReadByID(ctx, rng)
				case 2:
					s.doList(ctx, rng)
				}
			}
		}
	}
}

// randomSlot picks a quarter-hour between 08:00 and 17:45 so workers collide often.
func (s *Simulator) randomSlot(rng *rand.Rand) (date, clock string) {
	day := time.Now().AddDate(0, 0, 1+rng.Intn(s.config.Days))
	minutes := 8*60 + 15*rng.Intn(40)
	return day.Format(appointment.DateLayout), fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	f := s.pool.Families[rng.Intn(len(s.pool.Families))]
	pro := s.pool.Professionals[rng.Intn(len(s.pool.Professionals))]
	date, clock := s.randomSlot(rng)
	dep := f.DependentID.String()

	var resp api.BookingResponse
	status, latency, err := s.call(ctx, http.MethodPost, "/appointments", f.GuardianID, "guardian", api.CreateAppointmentRequest{
		ProfessionalID:   pro.String(),
		DependentID:      &dep,
		Date:             date,
		Time:             clock,
		ConsultationType: "video",
	}, &resp)

	if err == nil && status == http.StatusCreated {
		s.pool.AddAppointment(booked{ID: resp.Appointment.ID, ProfessionalID: pro, PatientID: f.GuardianID})
	}
	s.metrics.Booking.Record(latency, status, err)
}

func (s *Simulator) doStatusChange(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	// Professionals confirm and complete, guardians cancel.
	actor, role := b.ProfessionalID, "doctor"
	next := []appointment.AppointmentStatus{appointment.StatusConfirmed, appointment.StatusCompleted}[rng.Intn(2)]
	if rng.Intn(4) == 0 {
		actor, role, next = b.PatientID, "guardian", appointment.StatusCancelled
	}

	status, latency, err := s.call(ctx, http.MethodPatch, "/appointments/"+b.ID.String()+"/status", actor, role,
		api.UpdateStatusRequest{Status: string(next), CancellationReason: "simulated"}, nil)
	s.metrics.Status.Record(latency, status, err)
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	f := s.pool.Families[rng.Intn(len(s.pool.Families))]
	pro := s.pool.Professionals[rng.Intn(len(s.pool.Professionals))]
	date, clock := s.randomSlot(rng)

	path := fmt.Sprintf("/availability?professional_id=%s&date=%s&time=%s", pro, date, clock)
	status, latency, err := s.call(ctx, http.MethodGet, path, f.GuardianID, "guardian", nil, nil)
	s.metrics.Availability.Record(latency, status, err)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	status, latency, err := s.call(ctx, http.MethodGet, "/appointments/"+b.ID.String(), b.PatientID, "guardian", nil, nil)
	s.metrics.ReadByID.Record(latency, status, err)
}

func (s *Simulator) doList(ctx context.Context, rng *rand.Rand) {
	f := s.pool.Families[rng.Intn(len(s.pool.Families))]
	status, latency, err := s.call(ctx, http.MethodGet, "/appointments?limit=20&offset=0", f.GuardianID, "guardian", nil, nil)
	s.metrics.List.Record(latency, status, err)
}

// call sends one authenticated request and decodes a 2xx body into out.
func (s *Simulator) call(ctx context.Context, method, path string, actor uuid.UUID, role string, body, out any) (int, time.Duration, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, 0, err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, 0, err
	}
	token, err := s.token(actor, role)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, latency, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, latency, err
		}
	}
	return resp.StatusCode, latency, nil
}

func (s *Simulator) token(actor uuid.UUID, role string) (string, error) {
	key := actor.String() + "/" + role
	if t, ok := s.tokens.Load(key); ok {
		return t.(string), nil
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, api.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.config.Duration + time.Hour)),
		},
		Role: role,
	}).SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", err
	}
	s.tokens.Store(key, signed)
	return signed, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Status change", &s.metrics.Status)
	printOperationReport("Availability", &s.metrics.Availability)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List by patient", &s.metrics.List)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	avg, p50, p95, max := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond), p95.Round(time.Millisecond), max.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
