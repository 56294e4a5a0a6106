package providers

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Factory construit un adapteur a partir de la config dechiffree d'un
// PaymentMethod. Le code est passe pour les adapteurs multi-codes
// (DigitalPaye est enregistre sous trois codes operateur).
type Factory func(code string, cfg Config) Provider

// Registry relie les codes provider aux constructeurs d'adapteurs. Ajouter un
// provider = enregistrer une factory, la machine a etats n'est pas touchee.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry preloaded with every built-in adapter.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}

	r.Register(CodeCash, func(code string, cfg Config) Provider { return NewCashProvider() })
	r.Register(CodeWave, func(code string, cfg Config) Provider { return NewWaveProvider(cfg) })
	r.Register(CodeOrangeMoney, func(code string, cfg Config) Provider { return NewOrangeMoneyProvider(cfg) })
	r.Register(CodeMTNMoMo, func(code string, cfg Config) Provider { return NewMTNMoMoProvider(cfg) })
	r.Register(CodePaystack, func(code string, cfg Config) Provider { return NewPaystackProvider(cfg) })
	r.Register(CodeFlutterwave, func(code string, cfg Config) Provider { return NewFlutterwaveProvider(cfg) })
	r.Register(CodeCinetPay, func(code string, cfg Config) Provider { return NewCinetPayProvider(cfg) })

	digitalpaye := func(code string, cfg Config) Provider { return NewDigitalPayeProvider(code, cfg) }
	r.Register(CodeDigitalPayeOM, digitalpaye)
	r.Register(CodeDigitalPayeMTN, digitalpaye)
	r.Register(CodeDigitalPayeMoov, digitalpaye)

	return r
}

func (r *Registry) Register(code string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[code] = f
}

// Known reports whether a provider code is registered.
func (r *Registry) Known(code string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[code]
	return ok
}

// Codes returns the registered provider codes, sorted.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]string, 0, len(r.factories))
	for c := range r.factories {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Build instancie l'adapteur pour un code donne a partir du JSON de config du
// PaymentMethod. Un JSON vide donne une config zero (suffisant pour cash).
func (r *Registry) Build(code, configJSON string) (Provider, error) {
	r.mu.RLock()
	f, ok := r.factories[code]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider code %q", code)
	}

	var cfg Config
	if configJSON != "" {
		if err := json.Unmarshal([]byte(configJSON), &cfg); err != nil {
			return nil, fmt.Errorf("invalid provider config for %s: %w", code, err)
		}
	}
	return f(code, cfg), nil
}
