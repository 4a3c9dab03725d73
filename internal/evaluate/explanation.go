package evaluate

import (
	"regexp"
	"strings"

	"github.com/prepsync/practice-sync/internal/question"
)

// ChoiceExplanation is one per-choice fragment extracted from a rationale blob.
type ChoiceExplanation struct {
	Letter     string `json:"letter"`
	Content    string `json:"content"`
	IsCorrect  bool   `json:"isCorrect"`
	IsSelected bool   `json:"isSelected"`
}

var choiceLetters = []string{"A", "B", "C", "D"}

var (
	statusMarkerRe = regexp.MustCompile(`(?i)Choice ([A-D]) is (correct|incorrect|the best answer)`)
	bareMarkerRe   = regexp.MustCompile(`(?i)Choice ([A-D]) is`)
	isCorrectRe    = regexp.MustCompile(`(?i)is correct`)
	tagRe          = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
)

// ParseExplanation extracts one explanation fragment per choice letter A-D from
// loosely structured rationale text. Four strategies run in order, first one
// that yields any fragment wins; a correction pass then rewrites fragments so
// their correct/incorrect labeling agrees with the caller-supplied correct
// answer rather than the source text, which is known to mislabel.
func ParseExplanation(rationale, correctAnswer, selectedAnswer string, options []question.AnswerOption) []ChoiceExplanation {
	text := stripTags(rationale)
	blocks := splitBlocks(rationale)

	fragments := scanStatusMarkers(text)
	if len(fragments) == 0 {
		fragments = splitOnMarkers(text)
	}
	if len(fragments) == 0 {
		fragments = scanBlocks(blocks)
	}

	labeled := map[string]string{}
	if len(fragments) > 0 {
		for letter, body := range fragments {
			labeled[letter] = labelFragment(letter, correctAnswer, body)
		}
	} else {
		labeled = fallbackFragments(text, correctAnswer)
	}
	correctFragments(labeled, correctAnswer)

	selLetter := SelectedLetter(selectedAnswer, options)
	out := make([]ChoiceExplanation, 0, len(choiceLetters))
	for _, letter := range choiceLetters {
		out = append(out, ChoiceExplanation{
			Letter:     letter,
			Content:    labeled[letter],
			IsCorrect:  letter == correctAnswer,
			IsSelected: letter == selLetter,
		})
	}
	return out
}

// scanStatusMarkers finds "Choice <L> is (correct|incorrect|the best answer)"
// markers and pairs each with the free text running to the next marker.
func scanStatusMarkers(text string) map[string]string {
	out := map[string]string{}
	locs := statusMarkerRe.FindAllStringSubmatchIndex(text, -1)
	for i, loc := range locs {
		letter := strings.ToUpper(text[loc[2]:loc[3]])
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		body := strings.TrimSpace(text[loc[5]:end])
		body = strings.TrimSpace(strings.TrimPrefix(body, "."))
		out[letter] = body
	}
	return out
}

// splitOnMarkers is the looser second pass: any "Choice <L> is" marker starts a
// segment, status word optional.
func splitOnMarkers(text string) map[string]string {
	out := map[string]string{}
	locs := bareMarkerRe.FindAllStringSubmatchIndex(text, -1)
	for i, loc := range locs {
		letter := strings.ToUpper(text[loc[2]:loc[3]])
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		body := strings.TrimSpace(text[loc[1]:end])
		body = strings.TrimSpace(strings.TrimPrefix(body, "."))
		body = trimStatusWord(body)
		if body != "" {
			out[letter] = body
		}
	}
	return out
}

// scanBlocks looks for a marker anywhere inside each paragraph block.
func scanBlocks(blocks []string) map[string]string {
	out := map[string]string{}
	for _, block := range blocks {
		m := statusMarkerRe.FindStringSubmatchIndex(block)
		if m == nil {
			continue
		}
		letter := strings.ToUpper(block[m[2]:m[3]])
		body := strings.TrimSpace(statusMarkerRe.ReplaceAllString(block, ""))
		body = strings.TrimSpace(strings.TrimPrefix(body, "."))
		out[letter] = body
	}
	return out
}

// fallbackFragments builds the correct choice's fragment from the span after
// its marker (or a generic sentence), and substring-matches every other
// choice's span with "is correct" force-replaced.
func fallbackFragments(text, correctAnswer string) map[string]string {
	out := map[string]string{}
	spans := markerSpans(text)

	if span, ok := spans[correctAnswer]; ok {
		out[correctAnswer] = span
	} else {
		out[correctAnswer] = "Choice " + correctAnswer + " is the correct answer."
	}
	for _, letter := range choiceLetters {
		if letter == correctAnswer {
			continue
		}
		if span, ok := spans[letter]; ok {
			out[letter] = isCorrectRe.ReplaceAllString(span, "is incorrect")
		} else {
			out[letter] = "Choice " + letter + " is incorrect."
		}
	}
	return out
}

// markerSpans returns, per letter, the raw text from its "Choice <L> is"
// marker up to the next marker or end of input.
func markerSpans(text string) map[string]string {
	out := map[string]string{}
	locs := bareMarkerRe.FindAllStringSubmatchIndex(text, -1)
	for i, loc := range locs {
		letter := strings.ToUpper(text[loc[2]:loc[3]])
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		if _, seen := out[letter]; !seen {
			out[letter] = strings.TrimSpace(text[loc[0]:end])
		}
	}
	return out
}

func labelFragment(letter, correctAnswer, body string) string {
	status := "incorrect"
	if letter == correctAnswer {
		status = "correct"
	}
	if body == "" {
		return "Choice " + letter + " is " + status + "."
	}
	return "Choice " + letter + " is " + status + ". " + body
}

// correctFragments is the always-applied pass that repairs mislabeled source
// text against the known correct answer and fills missing fragments.
func correctFragments(fragments map[string]string, correctAnswer string) {
	for _, letter := range choiceLetters {
		content := fragments[letter]
		if letter != correctAnswer && content != "" {
			content = isCorrectRe.ReplaceAllString(content, "is incorrect")
			low := strings.ToLower(content)
			if !strings.Contains(low, "incorrect") && !strings.Contains(low, "not ") {
				content = strings.Replace(content, "Choice "+letter, "Choice "+letter+" is incorrect.", 1)
				if !strings.Contains(strings.ToLower(content), "incorrect") {
					content = "Choice " + letter + " is incorrect. " + content
				}
			}
		}
		if content == "" {
			if letter == correctAnswer {
				content = "Choice " + letter + " is the correct answer."
			} else {
				content = "Choice " + letter + " is incorrect."
			}
		}
		fragments[letter] = content
	}
}

func trimStatusWord(body string) string {
	for _, status := range []string{"correct", "incorrect", "the best answer"} {
		if len(body) >= len(status) && strings.EqualFold(body[:len(status)], status) {
			body = strings.TrimSpace(body[len(status):])
			body = strings.TrimSpace(strings.TrimPrefix(body, "."))
			break
		}
	}
	return body
}

func stripTags(s string) string {
	return strings.TrimSpace(tagRe.ReplaceAllString(s, " "))
}

// splitBlocks cuts HTML-ish rationale text into paragraph blocks.
func splitBlocks(s string) []string {
	parts := strings.Split(s, "</p>")
	if len(parts) == 1 {
		parts = strings.Split(s, "\n\n")
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if b := stripTags(p); b != "" {
			out = append(out, b)
		}
	}
	return out
}
