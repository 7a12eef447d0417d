// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package newsletter

// builtinTexts holds the system mail for one language. Campaign content is
// admin-authored; only the opt-in mail and the footer are built in.
type builtinTexts struct {
	ConfirmSubject   string
	ConfirmHTML      string
	Footer           string
	UnsubscribeLabel string
}

var builtins = map[string]builtinTexts{
	"en": {
		ConfirmSubject: "Confirm your subscription to {{.StoreName}}",
		ConfirmHTML: `<h1>{{.StoreName}}</h1>
<p>Thanks for signing up to our newsletter with {{.Email}}.</p>
<p><a href="{{.ConfirmURL}}">Confirm your subscription</a></p>
<p>If you did not request this, you can ignore this message.</p>`,
		Footer:           "You are receiving this because you subscribed to our newsletter.",
		UnsubscribeLabel: "Unsubscribe",
	},
	"ar": {
		ConfirmSubject: "أكد اشتراكك في {{.StoreName}}",
		ConfirmHTML: `<h1>{{.StoreName}}</h1>
<p>شكرا لاشتراكك في نشرتنا البريدية باستخدام {{.Email}}.</p>
<p><a href="{{.ConfirmURL}}">تأكيد الاشتراك</a></p>
<p>إذا لم تطلب ذلك، يمكنك تجاهل هذه الرسالة.</p>`,
		Footer:           "تصلك هذه الرسالة لأنك مشترك في نشرتنا البريدية.",
		UnsubscribeLabel: "إلغاء الاشتراك",
	},
}

// builtinFor returns the built-in texts for lang, falling back to English.
func builtinFor(lang string) builtinTexts {
	if t, ok := builtins[lang]; ok {
		return t
	}
	return builtins["en"]
}
