package prompt

import "strings"

// Tone mirrors how the user talks. The reply must keep one register
// throughout, so the system prompt pins it from the inbound utterance.
type Tone string

const (
	ToneFormal   Tone = "formal"
	ToneInformal Tone = "informal"
)

// formalEndings are the polite sentence closers; any hit makes the whole
// utterance formal. Bare 반말 endings are the default for short chat.
var formalEndings = []string{"요", "니다", "나요", "세요", "까요", "습니까"}

// DetectTone picks the register of an utterance by its sentence endings.
func DetectTone(text string) Tone {
	trimmed := strings.TrimRight(strings.TrimSpace(text), ".!?~ㅎㅋ ")
	for _, end := range formalEndings {
		if strings.HasSuffix(trimmed, end) {
			return ToneFormal
		}
	}
	return ToneInformal
}

// Instruction renders the tone rule for a system prompt.
func (t Tone) Instruction() string {
	if t == ToneFormal {
		return "사용자가 존댓말을 쓰므로 처음부터 끝까지 존댓말로만 답한다."
	}
	return "사용자가 반말을 쓰므로 처음부터 끝까지 친근한 반말로만 답한다."
}
