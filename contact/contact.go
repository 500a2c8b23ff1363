package contact

import (
	"errors"
	"fmt"

	"github.com/ptgott/onemail/address"
)

// Contact is a named email recipient or sender. Copy it freely.
type Contact struct {
	Name    string
	Address address.Address
}

// New returns a Contact for name and addr. The address has already been
// validated, so this can't fail.
func New(name string, addr address.Address) Contact {
	return Contact{
		Name:    name,
		Address: addr,
	}
}

// String renders the contact as "name <address>". The name is not quoted or
// escaped.
func (c Contact) String() string {
	return fmt.Sprintf("%v <%v>", c.Name, c.Address)
}

// UnmarshalYAML implements the yaml.Unmarshaler interface. Expects a map
// with "name" and "address" keys. The address is validated here.
func (c *Contact) UnmarshalYAML(unmarshal func(interface{}) error) error {
	v := make(map[string]string)
	err := unmarshal(&v)

	if err != nil {
		return fmt.Errorf("can't parse the contact: %v", err)
	}

	a, ok := v["address"]
	if !ok {
		return errors.New("a contact must include an address")
	}

	pa, err := address.Parse(a)
	if err != nil {
		return fmt.Errorf("can't use the contact address: %v", err)
	}

	c.Name = v["name"]
	c.Address = pa
	return nil
}
