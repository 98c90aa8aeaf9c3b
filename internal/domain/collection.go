package domain

// Collection is the remote store namespace holding all fragments of one user.
type Collection struct {
	ID   string
	Name string
}
