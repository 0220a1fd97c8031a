package services

import (
	"fmt"
	"strings"

	"github.com/alazoor/Mimachat/internal/core/domain"
)

// Reply texts shown to the user. The application answers in Arabic.
const (
	answerHeader     = "إليك المعلومات التي تم العثور عليها في المستندات:"
	answerScoreLabel = "تشابه"
	answerPrimary    = "المصدر الرئيسي"
	answerNoMatch    = "عذراً، لم أتمكن من العثور على معلومات ذات صلة باستعلامك ضمن النصوص المستخلصة. " +
		"يرجى محاولة صياغة مختلفة أو التأكد من إدخال المزيد من المستندات."
	answerNotReady = "النموذج قيد التحميل، يرجى المحاولة بعد قليل."
	answerTooShort = "الاستعلام قصير جداً، يرجى كتابة سؤال أوضح."
)

// FormatAnswer renders a search response as a reply. The top result names
// the primary source.
func FormatAnswer(resp domain.SearchResponse) domain.Answer {
	answer := domain.Answer{Response: resp}

	if len(resp.Results) == 0 {
		switch resp.Reason {
		case domain.ReasonModelNotReady:
			answer.Text = answerNotReady
		case domain.ReasonQueryTooShort:
			answer.Text = answerTooShort
		default:
			answer.Text = answerNoMatch
		}
		return answer
	}

	var b strings.Builder
	b.WriteString(answerHeader)
	b.WriteString("\n")
	for _, r := range resp.Results {
		fmt.Fprintf(&b, "\n• %s (%s: %.2f)", strings.TrimSpace(r.TextContent), answerScoreLabel, r.Similarity)
	}

	top := resp.Results[0]
	answer.PrimaryReference = top.SourceReference
	answer.PrimaryLocator = top.SourceLocator
	if top.SourceReference != "" {
		fmt.Fprintf(&b, "\n\n%s: %s", answerPrimary, top.SourceReference)
	}

	answer.Text = b.String()
	return answer
}
