// Package pipeline wires the discovery queue to the fetch worker pool:
// download, decompress, decode, transcode, persist, one batch per task as
// spec.md §4.10 requires.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/l2fetch/l2fetch/internal/bufferpool"
	"github.com/l2fetch/l2fetch/internal/discovery"
	"github.com/l2fetch/l2fetch/internal/level2"
	"github.com/l2fetch/l2fetch/internal/objectstore"
	"github.com/l2fetch/l2fetch/internal/stationstate"
	"github.com/l2fetch/l2fetch/internal/store"
	"github.com/l2fetch/l2fetch/internal/transcode"
	"github.com/l2fetch/l2fetch/internal/workerpool"
)

// Counters are the atomic, per-station fetch statistics spec.md §5 requires.
type Counters struct {
	FramesFetched      int64
	FramesFailed       int64
	LastFetchTimestamp int64
}

// Processor owns the buffer pool, object-store client, store, and decode
// products for one run of the fetch/process pipeline.
type Processor struct {
	client   objectstore.Client
	bufPool  *bufferpool.Pool
	frames   *store.Store
	state    *stationstate.State
	products []level2.Product

	onLog func(format string, args ...any)
}

// New builds a Processor. onLog, if nil, discards log lines.
func New(client objectstore.Client, bufPool *bufferpool.Pool, frames *store.Store, state *stationstate.State, products []level2.Product, onLog func(format string, args ...any)) *Processor {
	if onLog == nil {
		onLog = func(string, ...any) {}
	}
	return &Processor{client: client, bufPool: bufPool, frames: frames, state: state, products: products, onLog: onLog}
}

// ProcessBatch runs every item in a discovery batch sequentially on the
// calling worker, matching spec.md §4.10's "one batch, one worker" rule so
// a single station's large volumes don't contend for buffers.
func (p *Processor) ProcessBatch(ctx context.Context, batch discovery.Batch, counters *Counters) {
	for _, item := range batch.Items {
		if err := p.processItem(ctx, item); err != nil {
			atomic.AddInt64(&counters.FramesFailed, 1)
			p.onLog("pipeline: %s/%s failed: %v", item.Station, item.Key, err)
			if p.state != nil {
				p.state.Mutate(item.Station, func(st *stationstate.Station) {
					st.FramesFailed++
				})
			}
			continue
		}
		atomic.AddInt64(&counters.FramesFetched, 1)
		atomic.StoreInt64(&counters.LastFetchTimestamp, time.Now().Unix())
	}
}

func (p *Processor) processItem(ctx context.Context, item discovery.Item) error {
	fetchBuf := p.bufPool.Lease()
	defer fetchBuf.Release()

	body, err := p.client.Get(ctx, item.Key)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", item.Key, err)
	}
	if len(body) == 0 {
		return fmt.Errorf("fetch %s: empty body", item.Key)
	}
	fetchBuf.Set(append(fetchBuf.Buf(), body...))

	decodeBuf := p.bufPool.Lease()
	defer decodeBuf.Release()

	decompressed, err := level2.Decompress(fetchBuf.Buf())
	if err != nil {
		return fmt.Errorf("decompress %s: %w", item.Key, err)
	}
	decodeBuf.Set(append(decodeBuf.Buf(), decompressed...))

	frames, err := level2.Decode(decodeBuf.Buf(), item.Station, p.products)
	if err != nil {
		return fmt.Errorf("decode %s: %w", item.Key, err)
	}

	for _, frame := range frames {
		if err := p.persistFrame(frame); err != nil {
			p.onLog("pipeline: persist %s/%s/%s failed: %v", frame.Station, frame.Product, frame.Timestamp, err)
		}
	}

	if p.state != nil {
		p.state.Mutate(item.Station, func(st *stationstate.Station) {
			st.FramesFetched++
			st.LastFetchTimestamp = time.Now().Unix()
			if len(frames) > 0 {
				for _, f := range frames {
					st.LastFrameTimestamp = f.Timestamp
					break
				}
			}
		})
	}
	return nil
}

func (p *Processor) persistFrame(frame *level2.RadarFrame) error {
	r, ok := transcode.RangeFor(frame.Product)
	if !ok {
		return fmt.Errorf("no quantization range for product %s", frame.Product)
	}

	sort.Slice(frame.Sweeps, func(i, j int) bool {
		return frame.Sweeps[i].ElevationDeg < frame.Sweeps[j].ElevationDeg
	})

	grid3D, ok := transcode.BuildGrid3D(frame, r)

	for i := range frame.Sweeps {
		sweep := &frame.Sweeps[i]
		if sweep.NumGates <= 0 || sweep.GateSpacingM <= 0 {
			continue
		}
		grid2D := transcode.BuildGrid2D(sweep, r)
		art := transcode.TiltArtifact(frame.Station, string(frame.Product), frame.Timestamp, sweep.ElevationDeg, sweep.GateSpacingM, sweep.FirstGateM, grid2D)
		if err := p.frames.WriteTilt(frame.Station, string(frame.Product), frame.Timestamp, sweep.ElevationDeg, art); err != nil {
			return err
		}
	}

	if ok && grid3D.HasNonZero() {
		maxHeightM := level2.MaxBinHeightM(frame)
		art := transcode.VolumeArtifact(frame.Station, string(frame.Product), frame.Timestamp, grid3D, maxHeightM)
		if err := p.frames.WriteVolume(frame.Station, string(frame.Product), frame.Timestamp, art); err != nil {
			return err
		}
	}
	return nil
}

// Dispatcher reads batches off a channel-backed discovery queue and submits
// one task per batch to the fetch pool, as spec.md §4.10 and §5 describe
// (one dispatcher thread, blocking wait with periodic shutdown checks).
type Dispatcher struct {
	queue     <-chan discovery.Batch
	processor *Processor
	counters  map[string]*Counters

	mu   sync.RWMutex
	pool *workerpool.Pool
}

// NewDispatcher wires a discovery batch channel to the fetch pool.
func NewDispatcher(queue <-chan discovery.Batch, pool *workerpool.Pool, processor *Processor) *Dispatcher {
	return &Dispatcher{queue: queue, pool: pool, processor: processor, counters: make(map[string]*Counters)}
}

// SetPool swaps the fetch pool a running Dispatcher submits tasks to,
// implementing spec.md §9's build-new-then-swap reconfiguration discipline
// without recreating the dispatcher goroutine.
func (d *Dispatcher) SetPool(pool *workerpool.Pool) {
	d.mu.Lock()
	d.pool = pool
	d.mu.Unlock()
}

func (d *Dispatcher) currentPool() *workerpool.Pool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.pool
}

// Run reads the queue until it is closed or ctx is cancelled, submitting one
// fetch-pool task per batch; batches still queued at cancellation are left
// unread. The caller runs this in its own goroutine.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case batch, open := <-d.queue:
			if !open {
				return
			}
			counters := d.countersFor(batch)
			d.currentPool().Enqueue(func() {
				d.processor.ProcessBatch(ctx, batch, counters)
			})
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) countersFor(batch discovery.Batch) *Counters {
	if len(batch.Items) == 0 {
		return &Counters{}
	}
	station := batch.Items[0].Station

	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.counters[station]
	if !ok {
		c = &Counters{}
		d.counters[station] = c
	}
	return c
}

// Totals sums every station's counters into one aggregate snapshot, used by
// the control plane's GET /api/metrics.
func (d *Dispatcher) Totals() Counters {
	d.mu.Lock()
	defer d.mu.Unlock()
	var total Counters
	for _, c := range d.counters {
		total.FramesFetched += atomic.LoadInt64(&c.FramesFetched)
		total.FramesFailed += atomic.LoadInt64(&c.FramesFailed)
		if c.LastFetchTimestamp > total.LastFetchTimestamp {
			total.LastFetchTimestamp = c.LastFetchTimestamp
		}
	}
	return total
}
