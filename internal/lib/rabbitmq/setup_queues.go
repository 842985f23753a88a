package rabbitmq

// BillingExchange обменник событий биллинга.
const BillingExchange = "billing"

// Ключи маршрутизации событий биллинга.
const (
	RoutingUnresolved  = "unresolved"
	RoutingTierChanged = "tier_changed"
)

// Очереди событий биллинга.
const (
	QueueUnresolved  = "billing.unresolved"
	QueueTierChanged = "billing.tier_changed"
)

// QueueConfig описывает очередь и ключ, которым она привязана к обменнику.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetBillingQueues возвращает очереди, которые объявляет каждый сервис.
func GetBillingQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: QueueUnresolved, RoutingKey: RoutingUnresolved},
		{QueueName: QueueTierChanged, RoutingKey: RoutingTierChanged},
	}
}
