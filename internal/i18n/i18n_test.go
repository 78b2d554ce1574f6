package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return WithLocalizer(context.Background(), NewLocalizer(lang))
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "AppTitle"); got != "Exam Conductor" {
		t.Errorf("T(AppTitle) = %q, want 'Exam Conductor'", got)
	}
	if got := T(ctx, "StateMissed"); got != "You missed this exam" {
		t.Errorf("T(StateMissed) = %q, want 'You missed this exam'", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	if got := T(ctx, "ReportTotal"); got != "Итого" {
		t.Errorf("T(ReportTotal) = %q, want 'Итого'", got)
	}
	if got := T(ctx, "StateEarly"); got != "Экзамен ещё не открыт" {
		t.Errorf("T(StateEarly) = %q, want 'Экзамен ещё не открыт'", got)
	}
}

func TestUnknownLanguageFallsBack(t *testing.T) {
	ctx := initLang(t, "de")

	if got := T(ctx, "ReportSerial"); got != "Serial" {
		t.Errorf("T(ReportSerial) = %q, want 'Serial'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "SubmissionsRemoved", 1); got != "1 submission removed" {
		t.Errorf("Tp(SubmissionsRemoved, 1) = %q", got)
	}
	if got := Tp(ctx, "SubmissionsRemoved", 5); got != "5 submissions removed" {
		t.Errorf("Tp(SubmissionsRemoved, 5) = %q", got)
	}

	ru := initLang(t, "ru")
	if got := Tp(ru, "SubmissionsRemoved", 5); got != "Удалено 5 работ" {
		t.Errorf("Tp(SubmissionsRemoved, 5) ru = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "GradesheetQueued", map[string]any{"JobID": "abc"})
	if got != "Gradesheet abc queued" {
		t.Errorf("Td(GradesheetQueued) = %q, want 'Gradesheet abc queued'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestTranslator(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	tr := Translator("ru")
	if got := tr("ReportGradesSheet"); got != "Оценки" {
		t.Errorf("Translator(ru)(ReportGradesSheet) = %q, want 'Оценки'", got)
	}
}

func TestMiddlewarePrefersAcceptLanguage(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	var got string
	h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "ReportTotal")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "Итого" {
		t.Errorf("with Accept-Language ru got %q, want 'Итого'", got)
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if got != "Total" {
		t.Errorf("without Accept-Language got %q, want 'Total'", got)
	}
}
