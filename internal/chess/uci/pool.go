package uci

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

type PoolConfig struct {
	BinaryPath string
	// Capacity bounds the engine processes started per distinct Options.
	Capacity int
	Logger   *zap.Logger
}

// Pool hands out warm engine sessions grouped by their Options.
type Pool struct {
	binaryPath string
	capacity   int
	logger     *zap.Logger

	mu       sync.Mutex
	buckets  map[Options]*sessionBucket
	sessions map[*Session]*sessionBucket
}

func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.BinaryPath == "" {
		return nil, fmt.Errorf("binary path required")
	}
	if _, err := os.Stat(cfg.BinaryPath); err != nil {
		return nil, fmt.Errorf("stockfish binary check: %w", err)
	}
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = defaultCapacity()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		binaryPath: cfg.BinaryPath,
		capacity:   capacity,
		logger:     logger,
		buckets:    make(map[Options]*sessionBucket),
		sessions:   make(map[*Session]*sessionBucket),
	}, nil
}

// Search runs one search on a pooled session. A session that fails is
// discarded rather than returned to the pool.
func (p *Pool) Search(ctx context.Context, opt Options, req SearchRequest) (SearchResponse, error) {
	session, err := p.Acquire(ctx, opt)
	if err != nil {
		return SearchResponse{}, err
	}
	resp, err := session.Search(ctx, req)
	p.Release(session, err)
	return resp, err
}

func (p *Pool) Acquire(ctx context.Context, opt Options) (*Session, error) {
	bucket := p.getBucket(opt)

	for {
		select {
		case session := <-bucket.idle:
			if p.ready(ctx, session) {
				p.track(session, bucket)
				return session, nil
			}
			bucket.discard(session)
			continue
		default:
		}

		session, err := bucket.create(ctx, p.logger)
		if err == nil {
			p.logger.Debug("uci_session_started", zap.Int("threads", opt.Threads), zap.Int("multipv", opt.MultiPV))
			p.track(session, bucket)
			return session, nil
		}
		if !errors.Is(err, errBucketAtCapacity) {
			return nil, err
		}

		select {
		case session := <-bucket.idle:
			if p.ready(ctx, session) {
				p.track(session, bucket)
				return session, nil
			}
			bucket.discard(session)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (p *Pool) ready(ctx context.Context, session *Session) bool {
	if session == nil {
		return false
	}
	if err := session.EnsureReady(ctx); err != nil {
		p.logger.Warn("uci_session_stale", zap.Error(err))
		return false
	}
	return true
}

// Release returns a session. A non-nil err marks it broken.
func (p *Pool) Release(session *Session, err error) {
	if session == nil {
		return
	}

	p.mu.Lock()
	bucket, ok := p.sessions[session]
	delete(p.sessions, session)
	p.mu.Unlock()

	if !ok {
		_ = session.Close()
		return
	}
	if err != nil || !bucket.put(session) {
		bucket.discard(session)
	}
}

func (p *Pool) Close() error {
	p.mu.Lock()
	buckets := make([]*sessionBucket, 0, len(p.buckets))
	for _, b := range p.buckets {
		buckets = append(buckets, b)
	}
	p.sessions = make(map[*Session]*sessionBucket)
	p.mu.Unlock()

	var errs []error
	for _, bucket := range buckets {
		errs = append(errs, bucket.drain()...)
	}
	return errors.Join(errs...)
}

func (p *Pool) track(session *Session, bucket *sessionBucket) {
	p.mu.Lock()
	p.sessions[session] = bucket
	p.mu.Unlock()
}

func (p *Pool) getBucket(opt Options) *sessionBucket {
	p.mu.Lock()
	defer p.mu.Unlock()
	bucket, ok := p.buckets[opt]
	if !ok {
		bucket = newSessionBucket(p.binaryPath, opt, p.capacity)
		p.buckets[opt] = bucket
	}
	return bucket
}

type sessionBucket struct {
	opt        Options
	capacity   int
	binaryPath string

	mu    sync.Mutex
	total int
	idle  chan *Session
}

var errBucketAtCapacity = errors.New("session bucket at capacity")

func newSessionBucket(binaryPath string, opt Options, capacity int) *sessionBucket {
	if capacity <= 0 {
		capacity = 1
	}
	return &sessionBucket{
		opt:        opt,
		capacity:   capacity,
		binaryPath: binaryPath,
		idle:       make(chan *Session, capacity),
	}
}

func (b *sessionBucket) create(ctx context.Context, logger *zap.Logger) (*Session, error) {
	b.mu.Lock()
	if b.total >= b.capacity {
		b.mu.Unlock()
		return nil, errBucketAtCapacity
	}
	b.total++
	b.mu.Unlock()

	// the process must outlive the request that started it
	session, err := NewSession(context.WithoutCancel(ctx), b.binaryPath, b.opt, logger)
	if err != nil {
		b.decrement()
		return nil, err
	}
	return session, nil
}

func (b *sessionBucket) put(session *Session) bool {
	select {
	case b.idle <- session:
		return true
	default:
		return false
	}
}

func (b *sessionBucket) discard(session *Session) {
	if session != nil {
		_ = session.Close()
	}
	b.decrement()
}

func (b *sessionBucket) drain() []error {
	var errs []error
	for {
		select {
		case session := <-b.idle:
			if session == nil {
				continue
			}
			if err := session.Close(); err != nil {
				errs = append(errs, err)
			}
			b.decrement()
		default:
			return errs
		}
	}
}

func (b *sessionBucket) decrement() {
	b.mu.Lock()
	if b.total > 0 {
		b.total--
	}
	b.mu.Unlock()
}

func defaultCapacity() int {
	cpu := runtime.NumCPU()
	if cpu < 2 {
		return 2
	}
	if cpu > 4 {
		return 4
	}
	return cpu
}
