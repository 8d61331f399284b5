package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/medicarekit/quotehub/internal/models"
)

func TestNormalizeQuotesShapes(t *testing.T) {
	payloads := []json.RawMessage{
		// medigap-style: key + plan + company_base + nested monthly rate
		json.RawMessage(`{"key":"mg-1","plan":"g","company_base":{"name":"Mutual of Omaha"},"rate":{"month":12450}}`),
		// flat dollars
		json.RawMessage(`{"id":"dn-1","company_name":"Delta","monthly_premium":42.5}`),
		// semi-annual only
		json.RawMessage(`{"id":"fe-1","company_name":"Gerber","rate":{"semi_annual":60000}}`),
	}

	quotes := NormalizeQuotes(models.CategoryMedigap, payloads)
	if len(quotes) != 3 {
		t.Fatalf("expected 3 quotes, got %d", len(quotes))
	}

	mg := quotes[0]
	if mg.ID != "mg-1" {
		t.Errorf("key not used as ID fallback: %s", mg.ID)
	}
	if mg.PlanType != "G" {
		t.Errorf("plan not uppercased: %s", mg.PlanType)
	}
	if mg.Carrier != "Mutual of Omaha" {
		t.Errorf("nested carrier not resolved: %s", mg.Carrier)
	}
	if mg.MonthlyPremiumCents != 12450 {
		t.Errorf("rate.month >= 100 should pass through as cents, got %d", mg.MonthlyPremiumCents)
	}

	if quotes[1].MonthlyPremiumCents != 4250 {
		t.Errorf("dollar premium not converted to cents: %d", quotes[1].MonthlyPremiumCents)
	}
	if quotes[2].MonthlyPremiumCents != 10000 {
		t.Errorf("semi-annual 60000 should divide to 10000 monthly cents, got %d", quotes[2].MonthlyPremiumCents)
	}
}

func TestNormalizeQuotesPremiumPriority(t *testing.T) {
	// monthly_premium wins over every rate field.
	payload := json.RawMessage(`{"id":"q","monthly_premium":15000,"premium":1,"rate":{"month":99999,"semi_annual":1}}`)
	quotes := NormalizeQuotes(models.CategoryDental, []json.RawMessage{payload})
	if quotes[0].MonthlyPremiumCents != 15000 {
		t.Errorf("monthly_premium should take priority, got %d", quotes[0].MonthlyPremiumCents)
	}

	// premium is the last resort.
	payload = json.RawMessage(`{"id":"q2","premium":199.9}`)
	quotes = NormalizeQuotes(models.CategoryDental, []json.RawMessage{payload})
	if quotes[0].MonthlyPremiumCents != 200 {
		t.Errorf("premium fallback 199.9 should round to 200 cents, got %d", quotes[0].MonthlyPremiumCents)
	}
}

func TestNormalizeQuotesSkipsMalformed(t *testing.T) {
	payloads := []json.RawMessage{
		json.RawMessage(`not json at all`),
		json.RawMessage(`{"id":"ok","monthly_premium":100}`),
	}
	quotes := NormalizeQuotes(models.CategoryAdvantage, payloads)
	if len(quotes) != 1 || quotes[0].ID != "ok" {
		t.Errorf("malformed payload should be skipped, got %v", quotes)
	}
}

func TestNormalizeQuotesGeneratesIDs(t *testing.T) {
	quotes := NormalizeQuotes(models.CategoryAdvantage, []json.RawMessage{
		json.RawMessage(`{"monthly_premium":0}`),
	})
	if quotes[0].ID == "" {
		t.Error("quote without id or key should get a generated ID")
	}
	if quotes[0].Raw == nil {
		t.Error("raw payload not preserved")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{nil, ErrorKindGeneric},
		{errors.New("functions/deadline-exceeded"), ErrorKindTimeout},
		{errors.New("request timed out after 30s"), ErrorKindTimeout},
		{errors.New("Post: context deadline exceeded"), ErrorKindTimeout},
		{errors.New("functions/internal"), ErrorKindInternal},
		{errors.New("out of memory"), ErrorKindInternal},
		{errors.New("connection refused"), ErrorKindGeneric},
		{ErrProviderTimeout, ErrorKindTimeout},
		{ErrProviderInternal, ErrorKindInternal},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Errorf("Classify(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestUserMessage(t *testing.T) {
	msg := UserMessage(models.CategoryMedigap, []string{"G"}, errors.New("timeout"))
	if !strings.Contains(msg, "timed out") || !strings.Contains(msg, "Plan G") {
		t.Errorf("timeout message missing expected wording: %s", msg)
	}

	msg = UserMessage(models.CategoryDental, nil, errors.New("functions/internal"))
	if !strings.Contains(msg, "Dental") || !strings.Contains(msg, "heavy load") {
		t.Errorf("internal message missing expected wording: %s", msg)
	}

	msg = UserMessage(models.CategoryAdvantage, nil, errors.New("connection refused"))
	if !strings.Contains(msg, "connection refused") {
		t.Errorf("generic message should carry the underlying error: %s", msg)
	}
}

func TestGenderAndTobaccoCodes(t *testing.T) {
	if GenderCode(models.GenderFemale) != "F" || GenderCode(models.GenderMale) != "M" {
		t.Error("gender codes wrong")
	}
	yes, no := true, false
	if TobaccoFlag(&yes) != "1" || TobaccoFlag(&no) != "0" || TobaccoFlag(nil) != "0" {
		t.Error("tobacco flags wrong")
	}
}

func TestHTTPProviderMedigapRoundTrip(t *testing.T) {
	var gotPath string
	var gotReq MedigapRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID header")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"quotes": []map[string]interface{}{
				{"id": "q1", "plan": "G", "company_name": "Aetna", "monthly_premium": 13000},
			},
		})
	}))
	defer srv.Close()

	tobacco := false
	form := &models.QuoteFormData{
		Age:        "67",
		ZipCode:    "75001",
		Gender:     models.GenderFemale,
		TobaccoUse: &tobacco,
	}
	p := NewHTTPProvider(models.CategoryMedigap, srv.URL, srv.Client())
	quotes, err := p.FetchQuotes(context.Background(), form, []string{"G"})
	if err != nil {
		t.Fatalf("FetchQuotes failed: %v", err)
	}
	if gotPath != "/quotes/medigap" {
		t.Errorf("wrong path: %s", gotPath)
	}
	if gotReq.Age != 67 || gotReq.Gender != "F" || gotReq.Tobacco != "0" || len(gotReq.Plans) != 1 {
		t.Errorf("request contract mismatch: %+v", gotReq)
	}
	if len(quotes) != 1 || quotes[0].Carrier != "Aetna" || quotes[0].MonthlyPremiumCents != 13000 {
		t.Errorf("normalized quotes mismatch: %+v", quotes)
	}
}

func TestHTTPProviderEnvelopeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "functions/deadline-exceeded"})
	}))
	defer srv.Close()

	p := NewHTTPProvider(models.CategoryAdvantage, srv.URL, srv.Client())
	_, err := p.FetchQuotes(context.Background(), &models.QuoteFormData{ZipCode: "75001"}, nil)
	if err == nil {
		t.Fatal("expected an error from the envelope")
	}
	if Classify(err) != ErrorKindTimeout {
		t.Errorf("envelope error should classify as timeout: %v", err)
	}
}

func TestHTTPProviderNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewHTTPProvider(models.CategoryDental, srv.URL, srv.Client())
	_, err := p.FetchQuotes(context.Background(), &models.QuoteFormData{ZipCode: "75001"}, nil)
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("expected a status error, got %v", err)
	}
}

func TestHTTPProviderMedigapRequiresAge(t *testing.T) {
	p := NewHTTPProvider(models.CategoryMedigap, "http://unused", nil)
	_, err := p.FetchQuotes(context.Background(), &models.QuoteFormData{ZipCode: "75001"}, []string{"G"})
	if err == nil {
		t.Fatal("medigap fetch without age should fail before any network call")
	}
}

func TestRegistryFetchUnknownCategory(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Fetch(context.Background(), models.CategoryCancer, &models.QuoteFormData{}, nil)
	if err == nil || !strings.Contains(err.Error(), "no provider") {
		t.Errorf("expected a no-provider error, got %v", err)
	}
}
