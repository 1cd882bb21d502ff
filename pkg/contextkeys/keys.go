package contextkeys

type contextKey string

// ActorRoleKey - роль, от имени которой выполняется запрос.
const ActorRoleKey = contextKey("actorRole")
