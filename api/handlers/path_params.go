package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

func urlParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

func pathParams(r *http.Request) map[string]string {
	out := map[string]string{}
	rc := chi.RouteContext(r.Context())
	if rc != nil {
		for i, key := range rc.URLParams.Keys {
			if i < len(rc.URLParams.Values) {
				out[key] = rc.URLParams.Values[i]
			}
		}
	}
	if len(out) > 0 {
		return out
	}
	// Fallback for direct handler tests without chi route context.
	segments := strings.Split(strings.Trim(strings.TrimSpace(r.URL.Path), "/"), "/")
	addParamAfter(segments, "incidents", "id", out)
	addParamAfter(segments, "planactions", "id", out)
	addParamAfter(segments, "sites", "id", out)
	addParamAfter(segments, "companies", "id", out)
	addParamAfter(segments, "locations", "location_id", out)
	addParamAfter(segments, "perimeters", "id", out)
	addParamAfter(segments, "perimeter-categories", "id", out)
	addParamAfter(segments, "users", "user_id", out)
	addParamAfter(segments, "profiles", "user_id", out)
	addParamAfter(segments, "notifications", "id", out)
	return out
}

func addParamAfter(segments []string, marker, key string, out map[string]string) {
	if _, exists := out[key]; exists {
		return
	}
	for i := 0; i < len(segments)-1; i++ {
		if segments[i] == marker && strings.TrimSpace(segments[i+1]) != "" {
			out[key] = segments[i+1]
			return
		}
	}
}

// pathID parses a positive id path parameter.
func pathID(r *http.Request, key string) (int64, bool) {
	id, err := strconv.ParseInt(pathParams(r)[key], 10, 64)
	return id, err == nil && id > 0
}

func parseIntDefault(val string, def int) int {
	if val == "" {
		return def
	}
	if n, err := strconv.Atoi(val); err == nil {
		return n
	}
	return def
}

func parseOptionalID(val string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}

// parseIDList reads "1,2,3" and drops anything that is not a positive id.
func parseIDList(val string) []int64 {
	var out []int64
	for _, part := range strings.Split(val, ",") {
		if id := parseOptionalID(part); id > 0 {
			out = append(out, id)
		}
	}
	return out
}
