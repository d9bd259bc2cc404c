package examples

import (
	"sort"
	"strings"

	"crmagent/internal/payload"
)

// Records возвращает элементы, если ответ является массивом, иначе пустой срез.
func Records(v payload.Value) []payload.Value {
	if items, ok := v.Array(); ok {
		return items
	}
	return nil
}

// GroupByDomain группирует людей по домену каждого адреса из email_addresses.
// Доменом считается часть между первым и вторым '@'. Человек с несколькими
// адресами одного домена попадает в группу несколько раз.
func GroupByDomain(persons []payload.Value) map[string][]payload.Value {
	byDomain := make(map[string][]payload.Value)
	for _, person := range persons {
		field, _ := person.Get("email_addresses")
		emails, ok := field.Array()
		if !ok {
			continue
		}
		for _, e := range emails {
			email, ok := e.Str()
			if !ok || !strings.Contains(email, "@") {
				continue
			}
			domain := strings.Split(email, "@")[1]
			byDomain[domain] = append(byDomain[domain], person)
		}
	}
	return byDomain
}

// DuplicateDomains возвращает отсортированные домены, где больше одного человека.
func DuplicateDomains(groups map[string][]payload.Value) []string {
	var out []string
	for domain, persons := range groups {
		if len(persons) > 1 {
			out = append(out, domain)
		}
	}
	sort.Strings(out)
	return out
}
