package browser

import (
	"fmt"

	"github.com/v0xg/formprobe/internal/locator"
)

// QueryArgs is the argument object passed to QueryJS.
type QueryArgs struct {
	Kind        string `json:"kind"`
	Selector    string `json:"selector,omitempty"`
	Role        string `json:"role,omitempty"`
	Name        string `json:"name,omitempty"`
	Exact       bool   `json:"exact,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Text        string `json:"text,omitempty"`
}

// NewQueryArgs converts a deterministic strategy into script arguments.
func NewQueryArgs(s locator.Strategy) (QueryArgs, error) {
	if !s.Kind.Deterministic() {
		return QueryArgs{}, fmt.Errorf("%w: %s", ErrUnsupportedStrategy, s.Kind)
	}
	return QueryArgs{
		Kind:        string(s.Kind),
		Selector:    s.Selector,
		Role:        s.Role,
		Name:        s.Name,
		Exact:       s.Exact,
		Placeholder: s.Placeholder,
		Text:        s.Text,
	}, nil
}

// helpersJS is shared by the query and snapshot scripts. It must stay a
// plain expression list usable inside a function body.
const helpersJS = `
	const norm = s => (s || '').replace(/\s+/g, ' ').trim().toLowerCase();
	const matches = (actual, want, exact) => exact ? norm(actual) === norm(want) : norm(actual).includes(norm(want));
	const implicitRole = el => {
		const tag = el.tagName.toLowerCase();
		const type = (el.getAttribute('type') || '').toLowerCase();
		if (tag === 'button') return 'button';
		if (tag === 'input') {
			if (['submit', 'button', 'reset', 'image'].includes(type)) return 'button';
			if (type === 'checkbox') return 'checkbox';
			if (type === 'radio') return 'radio';
			if (['', 'text', 'email', 'password', 'tel', 'url', 'search'].includes(type)) return 'textbox';
		}
		if (tag === 'textarea') return 'textbox';
		if (tag === 'a' && el.hasAttribute('href')) return 'link';
		if (tag === 'select') return 'combobox';
		return '';
	};
	const roleOf = el => el.getAttribute('role') || implicitRole(el);
	const accessibleName = el => {
		const labelledBy = el.getAttribute('aria-labelledby');
		if (labelledBy) {
			const text = labelledBy.split(/\s+/).map(id => {
				const n = document.getElementById(id);
				return n ? n.textContent : '';
			}).join(' ');
			if (norm(text)) return text;
		}
		const aria = el.getAttribute('aria-label');
		if (norm(aria)) return aria;
		if (el.labels && el.labels.length) return Array.from(el.labels).map(l => l.textContent).join(' ');
		if (el.tagName.toLowerCase() === 'input') {
			const type = (el.getAttribute('type') || '').toLowerCase();
			if (['submit', 'button', 'reset'].includes(type)) return el.value || '';
			return el.getAttribute('placeholder') || el.getAttribute('title') || '';
		}
		return el.textContent || el.getAttribute('title') || '';
	};
	const stamp = el => {
		if (!el.hasAttribute('` + HandleAttr + `')) {
			window.__formprobeSeq = (window.__formprobeSeq || 0) + 1;
			el.setAttribute('` + HandleAttr + `', String(window.__formprobeSeq));
		}
		return el.getAttribute('` + HandleAttr + `');
	};
`

// QueryJS finds every element matching a QueryArgs object, stamps each with
// a handle and returns the handles in document order.
const QueryJS = `(q) => {` + helpersJS + `
	let found = [];
	switch (q.kind) {
	case 'selector':
		found = Array.from(document.querySelectorAll(q.selector));
		break;
	case 'placeholder':
		found = Array.from(document.querySelectorAll('[placeholder]'))
			.filter(el => el.getAttribute('placeholder') === q.placeholder);
		break;
	case 'role':
		found = Array.from(document.querySelectorAll('*'))
			.filter(el => roleOf(el) === q.role && (!q.name || matches(accessibleName(el), q.name, q.exact)));
		break;
	case 'text':
		// innermost elements only, so a message is not also matched by its ancestors
		found = Array.from(document.querySelectorAll('body *'))
			.filter(el => matches(el.textContent, q.text, q.exact))
			.filter(el => !Array.from(el.children).some(c => matches(c.textContent, q.text, q.exact)));
		break;
	}
	return found.map(stamp);
}`

// SnapshotJS summarises visible interactive elements, stamping handles so
// the selectors it reports are unique.
const SnapshotJS = `() => {` + helpersJS + `
	const controls = [];
	const seen = new Set();
	const visible = el => !!(el.offsetParent || el.getClientRects().length);
	const push = (el, type) => {
		if (!visible(el) || seen.has(el)) return;
		seen.add(el);
		controls.push({
			selector: '[` + HandleAttr + `="' + stamp(el) + '"]',
			type: type,
			role: roleOf(el) || undefined,
			label: norm(accessibleName(el)).slice(0, 80) || undefined,
			text: (el.textContent || '').trim().slice(0, 50) || undefined,
			placeholder: el.getAttribute('placeholder') || undefined,
			name: el.getAttribute('name') || undefined,
			id: el.id || undefined
		});
	};
	document.querySelectorAll('input:not([type="hidden"]), textarea').forEach(el => {
		const type = (el.getAttribute('type') || '').toLowerCase();
		push(el, ['submit', 'button'].includes(type) ? 'button' : (el.tagName.toLowerCase() === 'textarea' ? 'textarea' : (type || 'text')));
	});
	document.querySelectorAll('button, [role="button"]').forEach(el => push(el, 'button'));
	document.querySelectorAll('select').forEach(el => push(el, 'select'));
	document.querySelectorAll('a[href]').forEach(el => push(el, 'link'));
	return { url: window.location.href, title: document.title, elements: controls };
}`

// IdentityJS returns the document's identity, assigning candidate when the
// document has none yet. A fresh document never carries the old value.
const IdentityJS = `(candidate) => {
	if (!window.__formprobePageId) window.__formprobePageId = candidate;
	return window.__formprobePageId;
}`

// VisibleJS reports whether the element renders with a non-empty box.
const VisibleJS = `function() {
	const style = window.getComputedStyle(this);
	if (style.visibility === 'hidden' || style.display === 'none') return false;
	const rect = this.getBoundingClientRect();
	return rect.width > 0 && rect.height > 0;
}`

// ForceClickJS dispatches an activation without any actionability checks.
const ForceClickJS = `function() { this.click(); }`

// ClearValueJS empties an input through the native value setter, so
// framework-controlled inputs see the change, and fires input and change.
const ClearValueJS = `function() {
	const proto = this instanceof HTMLTextAreaElement ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
	const setter = Object.getOwnPropertyDescriptor(proto, 'value').set;
	setter.call(this, '');
	this.dispatchEvent(new Event('input', { bubbles: true }));
	this.dispatchEvent(new Event('change', { bubbles: true }));
}`
