package forthline

import (
	"sort"
	"strings"
)

// Dictionary maps lowercase names to words. A second redefinition table is
// consulted first by Lookup: it maps a name to either another name (an
// alias) or a concrete word.
type Dictionary struct {
	words  map[string]entry
	redefs map[string]redefinition

	// shadowed holds permanent definitions hidden by a later non-permanent
	// Add of the same name; Forget restores them.
	shadowed map[string]shadow

	logfn func(mess string, args ...interface{})
}

type entry struct {
	word      Word
	permanent bool
}

type redefinition struct {
	target    string
	word      Word
	permanent bool
}

type shadow struct {
	entry *entry
	redef *redefinition
}

// NewDictionary returns an empty dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{
		words:    make(map[string]entry),
		redefs:   make(map[string]redefinition),
		shadowed: make(map[string]shadow),
	}
}

// Len returns the number of names in either table.
func (d *Dictionary) Len() int { return len(d.Names()) }

// Add binds name to w, replacing any prior definition or redefinition of it.
// A permanent binding replaced by a non-permanent one comes back on Forget.
func (d *Dictionary) Add(name string, w Word, permanent bool) error {
	name = strings.ToLower(name)
	if name == "" {
		return DictionaryError{Err: ErrEmptyName}
	}
	if permanent {
		delete(d.shadowed, name)
	} else if _, hidden := d.shadowed[name]; !hidden {
		var sh shadow
		if e, ok := d.words[name]; ok && e.permanent {
			sh.entry = &e
		}
		if rd, ok := d.redefs[name]; ok && rd.permanent {
			sh.redef = &rd
		}
		if sh.entry != nil || sh.redef != nil {
			d.shadowed[name] = sh
		}
	}
	delete(d.redefs, name)
	d.words[name] = entry{word: w, permanent: permanent}
	return nil
}

// Lookup resolves name through the redefinition table, then the primary
// table. An unknown name yields a nil Word and no error.
func (d *Dictionary) Lookup(name string) (Word, error) {
	name = strings.ToLower(name)
	var seen map[string]struct{}
	for {
		rd, ok := d.redefs[name]
		if !ok {
			break
		}
		if _, revisit := seen[name]; revisit {
			return nil, DictionaryError{Name: name, Err: ErrCircularDefinition}
		}
		if seen == nil {
			seen = make(map[string]struct{})
		}
		seen[name] = struct{}{}
		if rd.word != nil {
			return rd.word, nil
		}
		name = rd.target
	}
	if e, ok := d.words[name]; ok {
		return e.word, nil
	}
	return nil, nil
}

// Redefine makes name an alias for target, resolved at each Lookup.
func (d *Dictionary) Redefine(name, target string, permanent bool) error {
	name, target = strings.ToLower(name), strings.ToLower(target)
	if err := d.checkRedefine(name); err != nil {
		return err
	}
	if target == "" {
		return DictionaryError{Name: name, Err: ErrEmptyName}
	}
	d.redefs[name] = redefinition{target: target, permanent: permanent}
	return nil
}

// RedefineWord binds name to a concrete word through the redefinition table.
func (d *Dictionary) RedefineWord(name string, w Word, permanent bool) error {
	name = strings.ToLower(name)
	if err := d.checkRedefine(name); err != nil {
		return err
	}
	if w == nil {
		return DictionaryError{Name: name, Err: ErrWordNotFound}
	}
	d.redefs[name] = redefinition{word: w, permanent: permanent}
	return nil
}

func (d *Dictionary) checkRedefine(name string) error {
	if name == "" {
		return DictionaryError{Err: ErrEmptyName}
	}
	_, inWords := d.words[name]
	_, inRedefs := d.redefs[name]
	if inWords || inRedefs {
		return DictionaryError{Name: name, Err: ErrDuplicateRedefinition}
	}
	return nil
}

// IsPermanent reports whether name survives Forget.
func (d *Dictionary) IsPermanent(name string) (bool, error) {
	name = strings.ToLower(name)
	if rd, ok := d.redefs[name]; ok {
		return rd.permanent, nil
	}
	if e, ok := d.words[name]; ok {
		return e.permanent, nil
	}
	return false, DictionaryError{Name: name, Err: ErrWordNotFound}
}

// Resolved returns every name mapped to the word it currently resolves to.
// Names that do not resolve are logged and left out.
func (d *Dictionary) Resolved() map[string]Word {
	res := make(map[string]Word, len(d.words)+len(d.redefs))
	for _, name := range d.Names() {
		w, err := d.Lookup(name)
		if err != nil {
			d.logf("skipping %v: %v", name, err)
			continue
		}
		if w == nil {
			d.logf("skipping %v: unresolved", name)
			continue
		}
		res[name] = w
	}
	return res
}

// Alias returns the target name of a redefinition alias.
func (d *Dictionary) Alias(name string) (string, bool) {
	rd, ok := d.redefs[strings.ToLower(name)]
	if !ok || rd.word != nil {
		return "", false
	}
	return rd.target, true
}

// Remove drops name from both tables.
func (d *Dictionary) Remove(name string) {
	name = strings.ToLower(name)
	delete(d.words, name)
	delete(d.redefs, name)
	delete(d.shadowed, name)
}

// Forget drops every non-permanent entry, returning how many were dropped.
// Permanent bindings they had replaced are restored.
func (d *Dictionary) Forget() (n int) {
	for name, e := range d.words {
		if !e.permanent {
			delete(d.words, name)
			n++
		}
	}
	for name, rd := range d.redefs {
		if !rd.permanent {
			delete(d.redefs, name)
			n++
		}
	}
	for name, sh := range d.shadowed {
		if sh.entry != nil {
			d.words[name] = *sh.entry
		}
		if sh.redef != nil {
			d.redefs[name] = *sh.redef
		}
		delete(d.shadowed, name)
	}
	return n
}

// Names returns every name in either table, sorted.
func (d *Dictionary) Names() []string {
	names := make([]string, 0, len(d.words)+len(d.redefs))
	for name := range d.words {
		names = append(names, name)
	}
	for name := range d.redefs {
		if _, dup := d.words[name]; !dup {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (d *Dictionary) logf(mess string, args ...interface{}) {
	if d.logfn != nil {
		d.logfn(mess, args...)
	}
}
