package oracle

import "time"

// InputParams is the normalized set of request parameters carried through
// registration, background execution, and response construction. It is the
// "value" half of a SubscriptionEntry (spec §3).
type InputParams map[string]interface{}

// Clone returns a shallow copy, since InputParams is shared between the
// subscription set and concurrent background-execute iterations.
func (p InputParams) Clone() InputParams {
	out := make(InputParams, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Timestamps records the provider round-trip timing attached to every
// CacheEntry, per spec §3.
type Timestamps struct {
	ProviderDataRequestedUnixMs        int64  `json:"providerDataRequestedUnixMs"`
	ProviderDataReceivedUnixMs         int64  `json:"providerDataReceivedUnixMs"`
	ProviderDataStreamEstablishedUnixMs *int64 `json:"providerDataStreamEstablishedUnixMs,omitempty"`
	ProviderIndicatedTimeUnixMs        *int64 `json:"providerIndicatedTimeUnixMs,omitempty"`
}

// WireError is the structured error body from spec §6.
type WireError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Envelope is the full adapter response value stored in the cache and
// returned over the wire. Exactly one of (Result-bearing fields) or Error
// is populated.
type Envelope struct {
	Result     interface{}            `json:"result,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	StatusCode int                    `json:"statusCode"`
	Timestamps *Timestamps            `json:"timestamps,omitempty"`

	Status string     `json:"status,omitempty"` // "errored" when Error != nil
	Error  *WireError `json:"error,omitempty"`
}

// NewSuccessEnvelope builds a 200 envelope with the given result, mirroring
// it into Data.result as the wire contract requires.
func NewSuccessEnvelope(result interface{}, data map[string]interface{}, ts Timestamps) *Envelope {
	if data == nil {
		data = map[string]interface{}{}
	}
	if _, ok := data["result"]; !ok {
		data["result"] = result
	}
	return &Envelope{
		Result:     result,
		Data:       data,
		StatusCode: 200,
		Timestamps: &ts,
	}
}

// NewErrorEnvelope builds an error envelope from a Fault for caching (DP
// failures are cached per spec §4.E.1) or for direct HTTP response.
func NewErrorEnvelope(f *Fault) *Envelope {
	return &Envelope{
		Status:     "errored",
		StatusCode: f.Kind.HTTPStatus(),
		Error:      &WireError{Name: f.Name, Message: f.Message},
	}
}

// IsError reports whether this envelope represents a cached/returned failure.
func (e *Envelope) IsError() bool {
	return e != nil && e.Error != nil
}

// NowUnixMs is the single clock source core components call, so tests can
// observe deterministic timestamps by constructing Timestamps directly
// instead of depending on wall-clock time inside assertions.
func NowUnixMs() int64 {
	return time.Now().UnixMilli()
}
