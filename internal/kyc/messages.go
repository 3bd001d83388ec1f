package kyc

import "fmt"

// Message is the localized title and body shown to the end user.
type Message struct {
	Title string
	Body  string
}

// MessageFor returns the user-facing copy for a notification type. The
// rejection body embeds the reason verbatim.
func MessageFor(typ NotificationType, rejectionReason string) Message {
	switch typ {
	case NotificationSubmissionReceived:
		return Message{
			Title: "تم استلام طلب التحقق",
			Body:  "استلمنا مستندات التحقق الخاصة بك وسيتم مراجعتها في أقرب وقت.",
		}
	case NotificationUnderReview:
		return Message{
			Title: "طلب التحقق قيد المراجعة",
			Body:  "يقوم فريقنا حالياً بمراجعة مستنداتك.",
		}
	case NotificationApproved:
		return Message{
			Title: "تم قبول التحقق من هويتك",
			Body:  "تمت الموافقة على طلب التحقق وأصبح حسابك نشطاً.",
		}
	case NotificationRejected:
		return Message{
			Title: "تم رفض طلب التحقق",
			Body:  fmt.Sprintf("تم رفض طلب التحقق للسبب التالي: %s. يمكنك إعادة إرسال المستندات.", rejectionReason),
		}
	default:
		return Message{Title: string(typ)}
	}
}
