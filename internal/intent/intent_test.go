package intent

import (
	"testing"

	"github.com/haneul-labs/saju-engine/pkg/models"
)

func TestParseBirthVariants(t *testing.T) {
	tests := []struct {
		name string
		text string
		want models.BirthInput
	}{
		{
			"korean with afternoon and minutes",
			"1994년 10월 3일 오후 7시 30분 여성",
			models.BirthInput{Year: 1994, Month: 10, Day: 3, Hour: 19, Minute: 30, Gender: models.GenderFemale},
		},
		{
			"korean afternoon no minutes",
			"1995년 3월 15일 오후 2시 남성",
			models.BirthInput{Year: 1995, Month: 3, Day: 15, Hour: 14, Gender: models.GenderMale},
		},
		{
			"digits with colon clock",
			"1988-08-08 06:20 남",
			models.BirthInput{Year: 1988, Month: 8, Day: 8, Hour: 6, Minute: 20, Gender: models.GenderMale},
		},
		{
			"dotted date, half-hour marker",
			"1990.5.5 저녁 9시 반 여자",
			models.BirthInput{Year: 1990, Month: 5, Day: 5, Hour: 21, Minute: 30, Gender: models.GenderFemale},
		},
		{
			"no hour defaults to noon",
			"2001년 12월 25일 여",
			models.BirthInput{Year: 2001, Month: 12, Day: 25, Hour: 12, Gender: models.GenderFemale},
		},
		{
			"midnight convention",
			"1992년 1월 1일 밤 12시 남자",
			models.BirthInput{Year: 1992, Month: 1, Day: 1, Hour: 0, Gender: models.GenderMale},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseBirth(tt.text)
			if !ok {
				t.Fatalf("ParseBirth(%q) found no date", tt.text)
			}
			if got != tt.want {
				t.Errorf("ParseBirth(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}

func TestParseBirthRejectsNonDates(t *testing.T) {
	for _, text := range []string{"올해 연애운 어때?", "안녕하세요", "10월에 이사 가도 돼?"} {
		if _, ok := ParseBirth(text); ok {
			t.Errorf("ParseBirth(%q) matched, want no match", text)
		}
	}
}

func TestDetectIntent(t *testing.T) {
	tests := []struct {
		text string
		want Intent
	}{
		{"1995년 3월 15일 오후 2시 남성이랑 궁합 어때?", IntentCompatibility},
		{"우리 잘 맞을까?", IntentCompatibility},
		{"올해 재물운 어때?", IntentWealth},
		{"이사하기 좋은 날 알려줘", IntentDatePick},
		{"오늘 운세 알려줘", IntentDailyFortune},
		{"오늘의 운세!", IntentDailyFortune},
		{"올해 연애운 어때?", IntentNone},
	}
	for _, tt := range tests {
		if got := DetectIntent(tt.text); got != tt.want {
			t.Errorf("DetectIntent(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestClassifyMessageOrdering(t *testing.T) {
	tests := []struct {
		text string
		want MessageClass
	}{
		{"요즘 너무 힘들어서 죽고 싶어", ClassHarmful},
		{"안녕!", ClassGreeting},
		{"안녕 나 요즘 사주가 너무 궁금한데 올해 운이 어떤지 봐줘", ClassSaju}, // long greeting opener is not a greeting
		{"너 누구야?", ClassMeta},
		{"올해 연애운 어때?", ClassSaju},
		{"점심 뭐 먹지", ClassCasual},
	}
	for _, tt := range tests {
		if got := ClassifyMessage(tt.text); got != tt.want {
			t.Errorf("ClassifyMessage(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestClassifyInterestsMultiLabel(t *testing.T) {
	got := ClassifyInterests("내년에 이직하면 연봉 오를까?")
	want := map[models.InterestCategory]bool{
		models.InterestWealth:  true,
		models.InterestCareer:  true,
		models.InterestFortune: true,
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want categories %v", got, want)
	}
	for _, c := range got {
		if !want[c] {
			t.Errorf("unexpected category %q in %v", c, got)
		}
	}
}

func TestClassifyInterestsFallsBackToGeneral(t *testing.T) {
	got := ClassifyInterests("음 그냥 심심해서")
	if len(got) != 1 || got[0] != models.InterestGeneral {
		t.Errorf("got %v, want [general]", got)
	}
}
