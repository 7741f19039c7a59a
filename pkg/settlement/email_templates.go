package settlement

import "fmt"

// buildPurchaseConfirmationEmail is the hardcoded fallback used when no active
// purchase_complete template is configured in the store.
func buildPurchaseConfirmationEmail(buyerName, productName string, amount float64) (subject, html, plain string) {
	subject = fmt.Sprintf("Your purchase of %s is confirmed", productName)

	html = fmt.Sprintf(`
		<html>
		<body>
			<h2>Thank you for your purchase!</h2>
			<p>Hi %s,</p>
			<p>Your payment of <strong>$%.2f</strong> for <strong>%s</strong> has been received.</p>
			<p>You will get access details from the product team shortly.</p>
			<p>Thanks,<br>The Storefront Team</p>
		</body>
		</html>
	`, buyerName, amount, productName)

	plain = fmt.Sprintf(`
Hi %s,

Thank you for your purchase! Your payment of $%.2f for %s has been received.

You will get access details from the product team shortly.

Thanks,
The Storefront Team
	`, buyerName, amount, productName)

	return subject, html, plain
}
