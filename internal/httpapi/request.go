package httpapi

import "net/http"

// paramsFromRequest flattens query-string and (for POST) form-encoded
// parameters into the single string→string map the dispatcher expects.
// Parameter values are already URL-decoded by net/http, matching
// spec.md §6's "assumed already URL-decoded" contract.
func paramsFromRequest(r *http.Request) map[string]string {
	_ = r.ParseForm()
	params := make(map[string]string, len(r.Form))
	for key, values := range r.Form {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params
}
