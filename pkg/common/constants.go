package common

const (
	RedisStreamSignalExecution = "signal.execution"
	RedisStreamPositionExit    = "position.exit"

	RedisStreamGroup    = "trader-group"
	RedisStreamConsumer = "trader-consumer"
)
