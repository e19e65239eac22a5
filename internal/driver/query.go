package driver

// QueryJS resolves a Query inside the browser. It is a function expression
// taking the Query as its only argument; `this` is the scope element, or
// anything else for the whole document. It returns matching elements in
// document order.
const QueryJS = `function (q) {
	const root = (this && this.nodeType === 1) ? this : document;
	const norm = (s) => (s || '').replace(/\s+/g, ' ').trim().toLowerCase();
	const matches = (have, want) => q.exact ? norm(have) === norm(want) : norm(have).includes(norm(want));
	const textOf = (el) => el.textContent || '';
	const skip = new Set(['SCRIPT', 'STYLE', 'HEAD', 'TITLE', 'META', 'TEMPLATE', 'NOSCRIPT']);
	const textTypes = new Set(['text', 'email', 'tel', 'url', 'search', 'password', 'number', 'date', '']);
	const all = () => Array.from(root.querySelectorAll('*'));

	function role(el) {
		const explicit = (el.getAttribute('role') || '').trim();
		if (explicit) return explicit.split(/\s+/)[0];
		const tag = el.tagName;
		const type = (el.getAttribute('type') || '').toLowerCase();
		switch (tag) {
		case 'BUTTON': return 'button';
		case 'A': return el.hasAttribute('href') ? 'link' : '';
		case 'TEXTAREA': return 'textbox';
		case 'SELECT': return el.multiple ? 'listbox' : 'combobox';
		case 'OPTION': return 'option';
		case 'INPUT':
			if (['button', 'submit', 'reset', 'image'].includes(type)) return 'button';
			if (type === 'checkbox' || type === 'radio') return type;
			if (type === 'number') return 'spinbutton';
			if (type === 'hidden') return '';
			return textTypes.has(type) ? 'textbox' : '';
		}
		return '';
	}

	function name(el, r) {
		const aria = el.getAttribute('aria-label');
		if (aria && aria.trim()) return aria;
		const by = el.getAttribute('aria-labelledby');
		if (by) {
			const parts = by.split(/\s+/).map((id) => document.getElementById(id)).filter(Boolean).map(textOf);
			if (parts.length) return parts.join(' ');
		}
		if (['textbox', 'combobox', 'listbox', 'spinbutton'].includes(r)) {
			if (el.labels && el.labels.length) return Array.from(el.labels).map(textOf).join(' ');
			return el.getAttribute('title') || '';
		}
		if (el.tagName === 'INPUT') return el.value || '';
		return textOf(el);
	}

	const out = [];
	const add = (el) => { if (el && !out.includes(el)) out.push(el); };

	switch (q.kind) {
	case 0:
		root.querySelectorAll(q.selector).forEach(add);
		break;
	case 1:
		all().forEach((el) => {
			const r = role(el);
			if (r === q.role && (!q.text || matches(name(el, r), q.text))) add(el);
		});
		break;
	case 2:
		all().forEach((el) => {
			if (skip.has(el.tagName) || !matches(textOf(el), q.text)) return;
			for (const child of el.children) {
				if (matches(textOf(child), q.text)) return;
			}
			add(el);
		});
		break;
	case 3:
		root.querySelectorAll('label').forEach((l) => {
			if (!matches(textOf(l), q.text)) return;
			add(l.control || l.querySelector('input, textarea, select'));
		});
		root.querySelectorAll('[aria-label]').forEach((el) => {
			if (el.tagName === 'LABEL') return;
			if (['INPUT', 'TEXTAREA', 'SELECT'].includes(el.tagName) || el.isContentEditable) {
				if (matches(el.getAttribute('aria-label'), q.text)) add(el);
			}
		});
		break;
	case 4:
		root.querySelectorAll('[placeholder]').forEach((el) => {
			if (matches(el.getAttribute('placeholder'), q.text)) add(el);
		});
		break;
	}
	if (root === document) {
		out.sort((a, b) => (a.compareDocumentPosition(b) & Node.DOCUMENT_POSITION_FOLLOWING) ? -1 : 1);
	}
	return out;
}`

// ViewportJS returns the layout viewport size
const ViewportJS = `() => ({
	width: window.innerWidth || document.documentElement.clientWidth,
	height: window.innerHeight || document.documentElement.clientHeight
})`

// RectJS returns the element's client rect. `this` is the element.
const RectJS = `function () {
	const r = this.getBoundingClientRect();
	return { x: r.x, y: r.y, width: r.width, height: r.height };
}`

// ScrollIntoViewJS smoothly centres `this` in the viewport
const ScrollIntoViewJS = `function () {
	this.scrollIntoView({ behavior: 'smooth', block: 'center', inline: 'center' });
}`

// ScrollByJS scrolls the window by (dx, dy)
const ScrollByJS = `(dx, dy) => { window.scrollBy(dx, dy); }`

// ScrollToBottomJS scrolls to the end of the document
const ScrollToBottomJS = `() => {
	const el = document.scrollingElement || document.documentElement;
	window.scrollTo({ top: el.scrollHeight, behavior: 'smooth' });
}`

// ClearJS empties an input, textarea or contenteditable and notifies frameworks
const ClearJS = `function () {
	if ('value' in this) {
		const proto = Object.getPrototypeOf(this);
		const desc = Object.getOwnPropertyDescriptor(proto, 'value');
		if (desc && desc.set) desc.set.call(this, ''); else this.value = '';
	} else if (this.isContentEditable) {
		this.textContent = '';
	}
	this.dispatchEvent(new Event('input', { bubbles: true }));
	this.dispatchEvent(new Event('change', { bubbles: true }));
}`

// SelectedLabelJS returns the selected option label of a native select
const SelectedLabelJS = `function () {
	if (this.tagName !== 'SELECT') throw new Error('not a select element');
	const opt = this.options[this.selectedIndex];
	return opt ? (opt.label || opt.textContent || '') : '';
}`

// SelectByValueJS picks a native select option by value
const SelectByValueJS = `function (v) {
	if (this.tagName !== 'SELECT') throw new Error('not a select element');
	const opt = Array.from(this.options).find((o) => o.value === v);
	if (!opt) return false;
	this.value = v;
	this.dispatchEvent(new Event('input', { bubbles: true }));
	this.dispatchEvent(new Event('change', { bubbles: true }));
	return true;
}`
