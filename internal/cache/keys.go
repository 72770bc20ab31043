package cache

const (
	keyBugList   = "bugs:list:v1"
	keyBugPrefix = "bugs:id:v1:"
)

func BugListKey() string {
	return keyBugList
}

func BugKey(id string) string {
	return keyBugPrefix + id
}
