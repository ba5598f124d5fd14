// Package templates provides the cart recovery email template
package templates

import "fmt"

type RecoveryEmailProps struct {
	CartURL      string
	TotalValue   string
	Currency     string
	ItemsCount   int
	CouponCode   string
	CouponValue  int
	CouponExpiry string
}

func GetRecoveryEmailContent(props RecoveryEmailProps) string {
	itemWord := "items"
	if props.ItemsCount == 1 {
		itemWord = "item"
	}

	content := GetParagraph("Hi there,") +
		GetParagraph(fmt.Sprintf("You left %d %s worth %s %s in your cart. They're still waiting for you.",
			props.ItemsCount, itemWord, props.TotalValue, props.Currency))

	if props.CouponCode != "" {
		content += GetParagraph(fmt.Sprintf("Complete your order now and take %d%% off with this code:", props.CouponValue)) +
			GetHighlight(props.CouponCode)
		if props.CouponExpiry != "" {
			content += GetParagraph(fmt.Sprintf("The code expires %s.", props.CouponExpiry))
		}
	}

	content += GetButton(ButtonProps{
		Text: "Return to your cart",
		URL:  props.CartURL,
	})

	return content
}
