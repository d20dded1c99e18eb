// Package orders runs the funded-order saga: an order waits for its funding
// wallet to be topped up, the funds are swept to the settlement wallet and
// the eSIM (or data top-up) is provisioned.
package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/ariefcatur/go-esim-orders/internal/airalo"
	"github.com/ariefcatur/go-esim-orders/internal/metrics"
	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/raulk/clock"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
	"sync"
	"time"
)

var log = logging.Logger("orders")

type Settlement interface {
	Convert(ctx context.Context, fiat decimal.Decimal) (decimal.Decimal, error)
	HasSufficientBalance(ctx context.Context, address string, required decimal.Decimal) (bool, error)
	Sweep(ctx context.Context, sourceSecret string, amount decimal.Decimal) (txID string, err error)
}

type Fulfiller interface {
	Provision(ctx context.Context, packageID string, quantity int) (airalo.SIM, error)
	TopUp(ctx context.Context, packageID, iccid string) (airalo.TopUp, error)
	Usage(ctx context.Context, iccid string) (json.RawMessage, error)
}

type Config struct {
	PollInterval  time.Duration
	PaymentWindow time.Duration
	Producer      string // event producer name
}

func DefaultConfig() Config {
	return Config{PollInterval: 30 * time.Second, PaymentWindow: 600 * time.Second, Producer: "esim-api"}
}

// Machine owns every running poll loop. Loops outlive the request that
// created them and stop only on completion, window expiry or Close.
type Machine struct {
	repo    *Repo
	settle  Settlement
	ful     Fulfiller
	pub     EventPublisher
	clock   clock.Clock
	cfg     Config
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMachine wires the saga. pub and m may be nil.
func NewMachine(repo *Repo, s Settlement, f Fulfiller, pub EventPublisher, clk clock.Clock, cfg Config, m *metrics.Metrics) *Machine {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.PaymentWindow <= 0 {
		cfg.PaymentWindow = def.PaymentWindow
	}
	if cfg.Producer == "" {
		cfg.Producer = def.Producer
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Machine{
		repo: repo, settle: s, ful: f, pub: pub, clock: clk, cfg: cfg, metrics: m,
		ctx: ctx, cancel: cancel,
	}
}

// Create validates and persists a pending order, then starts its poll loop.
func (m *Machine) Create(ctx context.Context, req CreateRequest) (Order, error) {
	if err := validate(req); err != nil {
		return Order{}, err
	}
	ok, err := m.repo.ProfileExists(ctx, req.FundingAddress)
	if err != nil {
		return Order{}, err
	}
	if !ok {
		return Order{}, ErrProfileNotFound
	}
	native, err := m.settle.Convert(ctx, req.FiatPrice)
	if err != nil {
		return Order{}, fmt.Errorf("convert %s: %w", req.FiatPrice, err)
	}

	now := m.clock.Now().UTC()
	o := Order{
		OrderID:              uuid.NewString(),
		Kind:                 req.Kind,
		FundingAddress:       req.FundingAddress,
		CatalogItemID:        req.CatalogItemID,
		Quantity:             req.Quantity,
		FiatPrice:            req.FiatPrice,
		ICCID:                req.ICCID,
		PaymentInNativeUnits: native,
		Status:               StatusPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := m.repo.SaveOrder(ctx, o); err != nil {
		return Order{}, err
	}
	if m.metrics != nil {
		m.metrics.OrdersCreated.WithLabelValues(string(o.Kind)).Inc()
	}
	m.publish(EventOrderCreated, o.OrderID, OrderCreatedPayload{
		OrderID:        o.OrderID,
		Kind:           o.Kind,
		FundingAddress: o.FundingAddress,
		PackageID:      o.CatalogItemID,
		Quantity:       o.Quantity,
		FiatPrice:      o.FiatPrice.String(),
		PaymentNative:  o.PaymentInNativeUnits.String(),
	})
	log.Infow("order created", "order", o.OrderID, "kind", o.Kind, "native", o.PaymentInNativeUnits.String())

	m.start(o.Kind, o.OrderID)
	return o, nil
}

func validate(req CreateRequest) error {
	switch {
	case !req.Kind.Valid():
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRequest, req.Kind)
	case req.FundingAddress == "":
		return fmt.Errorf("%w: ppPublicKey is required", ErrInvalidRequest)
	case req.CatalogItemID == "":
		return fmt.Errorf("%w: package_id is required", ErrInvalidRequest)
	case req.Quantity <= 0:
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidRequest)
	case !req.FiatPrice.IsPositive():
		return fmt.Errorf("%w: package_price must be positive", ErrInvalidRequest)
	case req.Kind == KindTopUp && req.ICCID == "":
		return fmt.Errorf("%w: iccid is required for top-ups", ErrInvalidRequest)
	}
	return nil
}

// Query returns the order view; see View for what is exposed.
func (m *Machine) Query(ctx context.Context, kind Kind, orderID string) (View, error) {
	o, ok, err := m.repo.GetOrder(ctx, kind, orderID)
	if err != nil {
		return View{}, err
	}
	if !ok {
		return View{}, ErrNotFound
	}
	return View{Order: o}, nil
}

// ListByProfile returns the provisioned orders of kind funded by address.
// Orders that fail to load are skipped.
func (m *Machine) ListByProfile(ctx context.Context, kind Kind, address string) ([]ProfileOrder, error) {
	p, ok, err := m.repo.GetProfile(ctx, address)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrProfileNotFound
	}
	ids := p.OrderIDs
	if kind == KindTopUp {
		ids = p.TopUpOrderIDs
	}

	found := make([]Order, 0, len(ids))
	for _, id := range ids {
		o, ok, err := m.repo.GetOrder(ctx, kind, id)
		if err != nil || !ok {
			log.Warnw("skip profile order", "address", address, "order", id, "err", err)
			continue
		}
		if o.Status != StatusProvisioned {
			continue
		}
		found = append(found, o)
	}

	out := make([]ProfileOrder, len(found))
	var g errgroup.Group
	g.SetLimit(4)
	for i, o := range found {
		po := ProfileOrder{OrderID: o.OrderID, CatalogItemID: o.CatalogItemID, ICCID: o.ICCID}
		if kind == KindTopUp {
			po.TopUp = o.FulfillmentResult
			out[i] = po
			continue
		}
		po.ICCID = gjson.GetBytes(o.FulfillmentResult, "iccid").String()
		out[i] = po
		g.Go(func() error {
			out[i].UsageData = json.RawMessage("null")
			if po.ICCID == "" {
				return nil
			}
			usage, err := m.ful.Usage(ctx, po.ICCID)
			if err != nil {
				log.Warnw("usage lookup", "iccid", po.ICCID, "err", err)
				return nil
			}
			if len(usage) > 0 {
				out[i].UsageData = usage
			}
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

func (m *Machine) start(kind Kind, orderID string) {
	m.wg.Add(1)
	go m.run(kind, orderID)
}

func (m *Machine) run(kind Kind, orderID string) {
	defer m.wg.Done()
	if m.metrics != nil {
		m.metrics.ActiveLoops.Inc()
		defer m.metrics.ActiveLoops.Dec()
	}

	ticker := m.clock.Ticker(m.cfg.PollInterval)
	defer ticker.Stop()
	deadline := m.clock.Timer(m.cfg.PaymentWindow)
	defer deadline.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-deadline.C:
			m.expire(m.ctx, kind, orderID)
			return
		case <-ticker.C:
			done, err := m.Tick(m.ctx, kind, orderID)
			if err != nil {
				log.Warnw("tick", "order", orderID, "err", err)
			}
			if done {
				return
			}
		}
	}
}

// Tick runs one poll cycle: it re-reads the order and its profile, then
// advances through every stage that is ready, persisting each transition
// before the next stage starts. A stage error is written to errorLog and
// leaves the status as it was. done reports that the loop should stop.
func (m *Machine) Tick(ctx context.Context, kind Kind, orderID string) (done bool, err error) {
	o, ok, err := m.repo.GetOrder(ctx, kind, orderID)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, ErrNotFound
	}
	if o.Status.Terminal() {
		return true, nil
	}
	p, ok, err := m.repo.GetProfile(ctx, o.FundingAddress)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, m.recordError(ctx, &o, "profile", ErrProfileNotFound)
	}

	for {
		stage := o.Status
		next, stageErr := m.advance(ctx, &o, p)
		if stageErr != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			return false, m.recordError(ctx, &o, string(stage), stageErr)
		}
		if next == "" {
			return false, nil
		}
		if err := m.transition(ctx, &o, next); err != nil {
			return false, err
		}
		if next == StatusProvisioned {
			if err := m.repo.AppendOrderID(ctx, o.FundingAddress, o.Kind, o.OrderID); err != nil {
				log.Errorw("append order to profile", "order", o.OrderID, "address", o.FundingAddress, "err", err)
			}
			return true, nil
		}
	}
}

// advance performs the work of the current stage and returns the status
// to move to, or "" when nothing is ready yet.
func (m *Machine) advance(ctx context.Context, o *Order, p FundingProfile) (Status, error) {
	switch o.Status {
	case StatusPending:
		ok, err := m.settle.HasSufficientBalance(ctx, o.FundingAddress, o.PaymentInNativeUnits)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", nil
		}
		return StatusPaid, nil

	case StatusPaid:
		txID, err := m.settle.Sweep(ctx, p.PrivateKey, o.PaymentInNativeUnits)
		if err != nil {
			return "", err
		}
		o.SweepTxID = txID
		return StatusPaidToMaster, nil

	case StatusPaidToMaster:
		res, err := m.fulfill(ctx, o)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrProvisioningFailed, err)
		}
		o.FulfillmentResult = res
		return StatusProvisioned, nil
	}
	return "", nil
}

func (m *Machine) fulfill(ctx context.Context, o *Order) (json.RawMessage, error) {
	var (
		v   any
		err error
	)
	if o.Kind == KindTopUp {
		v, err = m.ful.TopUp(ctx, o.CatalogItemID, o.ICCID)
	} else {
		var sim airalo.SIM
		sim, err = m.ful.Provision(ctx, o.CatalogItemID, o.Quantity)
		if err == nil && sim.ICCID == "" {
			err = airalo.ErrNoSIM
		}
		v = sim
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func (m *Machine) transition(ctx context.Context, o *Order, to Status) error {
	from := o.Status
	if !CanTransition(from, to) {
		return fmt.Errorf("order %s: illegal transition %s -> %s", o.OrderID, from, to)
	}
	o.Status = to
	o.UpdatedAt = m.stamp(o.UpdatedAt)
	if err := m.repo.SaveOrder(ctx, *o); err != nil {
		o.Status = from
		return err
	}
	if m.metrics != nil {
		m.metrics.Transitions.WithLabelValues(string(o.Kind), string(to)).Inc()
	}
	m.publish(EventOrderStatusChanged, o.OrderID, OrderStatusChangedPayload{
		OrderID: o.OrderID, Kind: o.Kind, From: from, To: to, ErrorLog: o.ErrorLog,
	})
	log.Infow("order transition", "order", o.OrderID, "from", from, "to", to)
	return nil
}

func (m *Machine) recordError(ctx context.Context, o *Order, stage string, cause error) error {
	o.ErrorLog = cause.Error()
	o.UpdatedAt = m.stamp(o.UpdatedAt)
	if m.metrics != nil {
		m.metrics.StageErrors.WithLabelValues(string(o.Kind), stage).Inc()
	}
	log.Warnw("stage failed", "order", o.OrderID, "stage", stage, "err", cause)
	return m.repo.SaveOrder(ctx, *o)
}

// expire fails the order if it is still in flight when the window closes.
func (m *Machine) expire(ctx context.Context, kind Kind, orderID string) {
	o, ok, err := m.repo.GetOrder(ctx, kind, orderID)
	if err != nil || !ok {
		log.Warnw("expire: load order", "order", orderID, "err", err)
		return
	}
	if o.Status.Terminal() {
		return
	}
	log.Infow("payment window expired", "order", orderID, "status", o.Status)
	if err := m.transition(ctx, &o, StatusFailed); err != nil {
		log.Errorw("expire order", "order", orderID, "err", err)
	}
}

// Close stops every poll loop and waits for in-flight ticks to return.
// Orders keep their current status.
func (m *Machine) Close() {
	m.cancel()
	m.wg.Wait()
}

func (m *Machine) stamp(prev time.Time) time.Time {
	now := m.clock.Now().UTC()
	if now.Before(prev) {
		return prev
	}
	return now
}

func (m *Machine) publish(eventType, orderID string, payload any) {
	if m.pub == nil {
		return
	}
	env, err := NewEnvelope(eventType, m.cfg.Producer, orderID, m.clock.Now(), payload)
	if err != nil {
		log.Warnw("encode event", "type", eventType, "err", err)
		return
	}
	b, err := json.Marshal(env)
	if err != nil {
		log.Warnw("encode envelope", "type", eventType, "err", err)
		return
	}
	m.pub.PublishEvent(string(PartitionKey(orderID)), eventType, b)
}
