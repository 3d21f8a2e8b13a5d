package observability

const (
	MUsecaseRequests         MetricKey = "usecase_requests_total"
	MUsecaseDuration         MetricKey = "usecase_duration_seconds"
	MHTTPRequests            MetricKey = "http_requests_total"
	MHTTPRequestDuration     MetricKey = "http_request_duration_seconds"
	MExternalRequests        MetricKey = "external_requests_total"
	MExternalRequestDuration MetricKey = "external_request_duration_seconds"

	MOrders        MetricKey = "orders_total"
	MPaymentAmount MetricKey = "payment_amount_cents_total"
	MStockLevel    MetricKey = "inventory_stock_level"
	MLowStock      MetricKey = "inventory_low_stock_products"
)
