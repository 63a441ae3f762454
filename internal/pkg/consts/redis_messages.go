package consts

const (
	RedisGetFailure    = "Failed to get value from Redis."
	RedisSetFailure    = "Failed to set value in Redis."
	RedisDeleteFailure = "Failed to delete key from Redis."
	RedisLockAcquired  = "Acquired Redis lock."
	RedisLockReleased  = "Released Redis lock."
	RedisLockBusy      = "Redis lock is held by another worker."
)
