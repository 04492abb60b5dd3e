// Package registryhttp implements the Registry Control Plane HTTP
// surface (§4.H): registration upload/delete, asset sync, the
// CONFIGURABLE preference schema, the secrets sub-resource, and
// asset-mapping CRUD.
package registryhttp

import "net/http"

// MiddlewareFunc is the call signature for a chained middleware
// function: it must invoke next to continue down the chain.
type MiddlewareFunc func(w http.ResponseWriter, r *http.Request, next http.HandlerFunc)

// MiddlewareMux is an http.ServeMux that runs an ordered middleware
// chain ahead of pattern-based dispatch, so panic recovery, request
// logging, and metrics wrap every route uniformly.
type MiddlewareMux struct {
	http.ServeMux
	chain []MiddlewareFunc
}

// NewMiddlewareMux builds a MiddlewareMux running functions, in order,
// before dispatch.
func NewMiddlewareMux(functions ...MiddlewareFunc) *MiddlewareMux {
	return &MiddlewareMux{chain: functions}
}

// ServeHTTP runs the pre-dispatch middleware chain, then the matched
// route.
func (mux *MiddlewareMux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux.at(0)(w, r)
}

func (mux *MiddlewareMux) at(i int) http.HandlerFunc {
	if i >= len(mux.chain) {
		return mux.ServeMux.ServeHTTP
	}
	return func(w http.ResponseWriter, r *http.Request) {
		mux.chain[i](w, r, mux.at(i+1))
	}
}
