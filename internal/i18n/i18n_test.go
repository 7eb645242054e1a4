package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "status.challenge_discarded")
	if got != "Challenge discarded." {
		t.Errorf("T(status.challenge_discarded) = %q", got)
	}

	got = T(ctx, "error.no_active_session")
	if got != "There is no active challenge to act on." {
		t.Errorf("T(error.no_active_session) = %q", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	got := T(ctx, "status.challenge_discarded")
	if got != "Задание отменено." {
		t.Errorf("T(status.challenge_discarded) = %q", got)
	}
}

func TestPluralTranslationEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "error.incomplete_mc", 1)
	if got1 != "1 question is still unanswered." {
		t.Errorf("Tp(error.incomplete_mc, 1) = %q", got1)
	}

	got3 := Tp(ctx, "error.incomplete_mc", 3)
	if got3 != "3 questions are still unanswered." {
		t.Errorf("Tp(error.incomplete_mc, 3) = %q", got3)
	}
}

func TestPluralTranslationRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	tests := []struct {
		count int
		want  string
	}{
		{1, "Остался 1 вопрос без ответа."},
		{2, "Осталось 2 вопроса без ответа."},
		{5, "Осталось 5 вопросов без ответа."},
	}
	for _, tt := range tests {
		if got := Tp(ctx, "error.incomplete_mc", tt.count); got != tt.want {
			t.Errorf("Tp(error.incomplete_mc, %d) = %q, want %q", tt.count, got, tt.want)
		}
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "status.graded", map[string]any{"Correct": 3, "Total": 5, "Percent": 60})
	if got != "You scored 3 out of 5 (60%)." {
		t.Errorf("Td(status.graded) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "no.such.key")
	if got != "no.such.key" {
		t.Errorf("T(no.such.key) = %q, want the key itself", got)
	}
}

func TestMiddlewareHonorsAcceptLanguage(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}

	var got string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "status.challenge_discarded")
	})
	handler := Middleware("en")(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "ru")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if got != "Задание отменено." {
		t.Errorf("ru request localized as %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if got != "Challenge discarded." {
		t.Errorf("default request localized as %q", got)
	}
}
