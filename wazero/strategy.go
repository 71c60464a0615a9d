// Package wazero runs sandboxed WebAssembly extractors with the wazero
// runtime. Each pooled instance owns its own module instantiation, so a
// crashed or leaking guest is isolated from its siblings and discarded
// by instance health checks.
//
// The guest ABI is minimal: an exported `alloc(size) -> ptr` for
// passing input into guest memory, and an exported
// `extract(ptr, len, url_ptr, url_len) -> i64` packing the result
// pointer and length into the high and low 32 bits. The result is a
// JSON document.
package wazero

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fwojciec/tidepool"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// Ensure interfaces are implemented at compile time.
var (
	_ tidepool.Strategy = (*Strategy)(nil)
	_ tidepool.Instance = (*Instance)(nil)
)

// instanceSeq disambiguates module names within a shared runtime.
var instanceSeq atomic.Uint64

// guestResult is the JSON document returned by the guest's extract
// export.
type guestResult struct {
	Title   string `json:"title"`
	Text    string `json:"text"`
	Content string `json:"content_html"`
	Quality int    `json:"quality_score"`
}

// Strategy creates wasm extraction instances from a compiled guest
// module. The module is compiled once; instantiation per instance is
// cheap by comparison.
type Strategy struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
}

// NewStrategy compiles the guest module and prepares a shared runtime.
// The caller owns the returned strategy and must Close it when all
// pools using it have shut down.
func NewStrategy(ctx context.Context, guestWasm []byte) (*Strategy, error) {
	if len(guestWasm) == 0 {
		return nil, tidepool.Errorf(tidepool.EINVALID, "empty wasm module")
	}

	rt := wazero.NewRuntime(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, rt)

	compiled, err := rt.CompileModule(ctx, guestWasm)
	if err != nil {
		rt.Close(ctx)
		return nil, tidepool.Errorf(tidepool.EINVALID, "compiling wasm module: %v", err)
	}

	return &Strategy{runtime: rt, compiled: compiled}, nil
}

// Kind identifies the strategy.
func (s *Strategy) Kind() tidepool.StrategyKind { return tidepool.StrategyWasm }

// NewInstance instantiates the compiled module. Each instance gets its
// own linear memory and guest state.
func (s *Strategy) NewInstance(ctx context.Context) (tidepool.Instance, error) {
	name := fmt.Sprintf("extractor-%d", instanceSeq.Add(1))
	cfg := wazero.NewModuleConfig().WithName(name).WithStartFunctions("_initialize")

	mod, err := s.runtime.InstantiateModule(ctx, s.compiled, cfg)
	if err != nil {
		return nil, tidepool.Errorf(tidepool.EINTERNAL, "instantiating wasm module: %v", err)
	}

	inst := &Instance{
		mod:     mod,
		alloc:   mod.ExportedFunction("alloc"),
		extract: mod.ExportedFunction("extract"),
	}
	if inst.alloc == nil || inst.extract == nil {
		mod.Close(ctx)
		return nil, tidepool.Errorf(tidepool.EINVALID, "wasm module missing alloc or extract export")
	}
	return inst, nil
}

// Close releases the runtime and all module instantiations.
func (s *Strategy) Close(ctx context.Context) error {
	return s.runtime.Close(ctx)
}

// Instance is a single wasm module instantiation.
type Instance struct {
	mod     api.Module
	alloc   api.Function
	extract api.Function
}

// Extract copies the input into guest memory, calls the guest's extract
// export, and decodes the JSON result.
func (i *Instance) Extract(ctx context.Context, content []byte, url string) (*tidepool.ExtractedDoc, error) {
	if len(content) == 0 {
		return nil, tidepool.Errorf(tidepool.EINVALID, "empty input")
	}

	contentPtr, err := i.writeGuest(ctx, content)
	if err != nil {
		return nil, err
	}
	urlPtr, err := i.writeGuest(ctx, []byte(url))
	if err != nil {
		return nil, err
	}

	results, err := i.extract.Call(ctx, contentPtr, uint64(len(content)), urlPtr, uint64(len(url)))
	if err != nil {
		// A guest trap (OOM, panic) ends up here. The pool retires
		// the instance on the failure that follows.
		return nil, tidepool.Errorf(tidepool.EINTERNAL, "wasm extract: %v", err)
	}

	packed := results[0]
	resultPtr := uint32(packed >> 32)
	resultLen := uint32(packed)
	if resultLen == 0 {
		return nil, tidepool.Errorf(tidepool.ENOTFOUND, "wasm extractor returned no content")
	}

	raw, ok := i.mod.Memory().Read(resultPtr, resultLen)
	if !ok {
		return nil, tidepool.Errorf(tidepool.EINTERNAL, "wasm result out of memory bounds")
	}

	var res guestResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, tidepool.Errorf(tidepool.EINTERNAL, "decoding wasm result: %v", err)
	}
	if strings.TrimSpace(res.Text) == "" {
		return nil, tidepool.Errorf(tidepool.ENOTFOUND, "wasm extractor returned no content")
	}

	return &tidepool.ExtractedDoc{
		Title:        res.Title,
		Text:         res.Text,
		ContentHTML:  res.Content,
		WordCount:    len(strings.Fields(res.Text)),
		QualityScore: res.Quality,
	}, nil
}

// MemoryEstimate reports the guest's current linear memory size. Guest
// memory only grows, so this tracks the instance's high-water mark and
// lets the pool retire instances that have bloated past the limit.
func (i *Instance) MemoryEstimate() uint64 {
	mem := i.mod.Memory()
	if mem == nil {
		return 0
	}
	return uint64(mem.Size())
}

// Close releases the module instantiation.
func (i *Instance) Close() error {
	return i.mod.Close(context.Background())
}

// writeGuest allocates guest memory and copies b into it.
func (i *Instance) writeGuest(ctx context.Context, b []byte) (uint64, error) {
	results, err := i.alloc.Call(ctx, uint64(len(b)))
	if err != nil {
		return 0, tidepool.Errorf(tidepool.EINTERNAL, "wasm alloc: %v", err)
	}
	ptr := results[0]
	if !i.mod.Memory().Write(uint32(ptr), b) {
		return 0, tidepool.Errorf(tidepool.EINTERNAL, "wasm alloc out of memory bounds")
	}
	return ptr, nil
}
